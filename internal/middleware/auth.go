package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jiuwen-dev/agent-studio/internal/auth"
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/jiuwen-dev/agent-studio/internal/types"
	"gorm.io/gorm"
)

type AuthenticatedUser struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	IsSuperuser bool   `json:"is_superuser"`
}

func AuthMiddleware(conn *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")

		if authHeader == "" {
			abortUnauthorized(ctx, "Authorization token is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)

		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(ctx, "Authorization header format must be Bearer {token}")
			return
		}

		token, err := auth.VerifyJWT(parts[1])

		if err != nil || !token.Valid {
			abortUnauthorized(ctx, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)

		if !ok {
			abortUnauthorized(ctx, "Invalid token claims")
			return
		}

		userIDFloat, ok := claims["user_id"].(float64)

		if !ok {
			abortUnauthorized(ctx, "Invalid user ID in token claims")
			return
		}

		var user models.User

		if err := conn.Where("id = ?", uint(userIDFloat)).First(&user).Error; err != nil {
			abortUnauthorized(ctx, "User not found")
			return
		}

		if !user.IsActive {
			abortUnauthorized(ctx, "User account is inactive")
			return
		}

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:          user.ID,
			Username:    user.Username,
			Email:       user.Email,
			FullName:    user.FullName,
			IsSuperuser: user.IsSuperuser,
		})
		ctx.Next()
	}
}

// RequireSuperuser must run after AuthMiddleware.
func RequireSuperuser() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value, exists := ctx.Get(types.ContextUserKey)

		user, ok := value.(AuthenticatedUser)

		if !exists || !ok {
			abortUnauthorized(ctx, "User not authenticated")
			return
		}

		if !user.IsSuperuser {
			ctx.AbortWithStatusJSON(http.StatusForbidden, types.Response{
				Success: false,
				Message: "Insufficient permissions",
				Error:   "Insufficient permissions",
			})
			return
		}

		ctx.Next()
	}
}

func abortUnauthorized(ctx *gin.Context, message string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, types.Response{
		Success: false,
		Message: message,
		Error:   message,
	})
}
