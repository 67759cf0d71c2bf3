package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jiuwen-dev/agent-studio/internal/types"
)

func respondOK(ctx *gin.Context, status int, message string, data interface{}) {
	ctx.JSON(status, types.Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, types.Response{
		Success: false,
		Message: message,
		Error:   message,
	})
}
