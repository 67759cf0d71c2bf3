package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/jiuwen-dev/agent-studio/internal/types"
	"github.com/jiuwen-dev/agent-studio/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserHandler struct {
	DB *gorm.DB
}

func NewUserHandler(conn *gorm.DB) *UserHandler {
	return &UserHandler{DB: conn}
}

// Pointer fields distinguish omitted from present-but-zero.
type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"full_name"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

func (h *UserHandler) ListUsers(ctx *gin.Context) {
	pager := utils.GetPagination(ctx)

	query := h.DB.Model(&models.User{})

	if search := ctx.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64

	if err := query.Count(&total).Error; err != nil {
		log.Printf("Failed to count users: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	var users []models.User

	if err := query.Order("id").Offset(pager.Offset()).Limit(pager.Size).Find(&users).Error; err != nil {
		log.Printf("Failed to list users: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]types.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, userResponse(user))
	}

	respondOK(ctx, http.StatusOK, "Users retrieved successfully", types.PagedList{
		Items: items,
		Total: total,
		Page:  pager.Page,
		Size:  pager.Size,
	})
}

func (h *UserHandler) GetUser(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if !currentUser.IsSuperuser && currentUser.ID != userID {
		respondError(ctx, http.StatusForbidden, "Insufficient permissions")
		return
	}

	var user models.User

	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "User not found")
		} else {
			log.Printf("Failed to fetch user: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondOK(ctx, http.StatusOK, "User retrieved successfully", userResponse(user))
}

func (h *UserHandler) UpdateUser(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if !currentUser.IsSuperuser && currentUser.ID != userID {
		respondError(ctx, http.StatusForbidden, "Insufficient permissions")
		return
	}

	var user models.User

	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "User not found")
		} else {
			log.Printf("Failed to fetch user: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	var req UpdateUserRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	updates := make(map[string]interface{})

	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}

	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}

	if req.IsActive != nil {
		// Only administrators may flip the active flag.
		if !currentUser.IsSuperuser {
			respondError(ctx, http.StatusForbidden, "Insufficient permissions")
			return
		}
		updates["is_active"] = *req.IsActive
	}

	if req.Password != nil {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash password: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
			return
		}
		updates["password_hash"] = string(passwordHash)
	}

	// Email conflict check shares the write's transaction; the unique
	// index catches a concurrent writer slipping past it.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if email, ok := updates["email"].(string); ok && email != user.Email {
			var existing models.User

			err := tx.Where("email = ? AND id != ?", email, user.ID).First(&existing).Error

			if err == nil {
				return errEmailTaken
			}

			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if len(updates) == 0 {
			return nil
		}

		return tx.Model(&user).Updates(updates).Error
	})

	if err != nil {
		if errors.Is(err, errEmailTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(ctx, http.StatusBadRequest, "Email already exists")
			return
		}
		log.Printf("Failed to update user: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.DB.First(&user, user.ID).Error; err != nil {
		log.Printf("Failed to refresh user: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "User updated successfully", userResponse(user))
}

func (h *UserHandler) DeleteUser(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if currentUser.ID == userID {
		respondError(ctx, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	var user models.User

	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "User not found")
		} else {
			log.Printf("Failed to fetch user: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if err := h.DB.Unscoped().Delete(&user).Error; err != nil {
		log.Printf("Failed to delete user: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "User deleted successfully", gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}
