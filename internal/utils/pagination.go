package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Pagination struct {
	Page int
	Size int
}

// GetPagination reads page/size query parameters, clamping size to 1-100.
func GetPagination(ctx *gin.Context) Pagination {
	page, err := strconv.Atoi(ctx.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(ctx.Query("size"))
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return Pagination{Page: page, Size: size}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Size
}

func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
