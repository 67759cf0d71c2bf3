package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jiuwen-dev/agent-studio/internal/auth"
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/jiuwen-dev/agent-studio/internal/types"
	"github.com/jiuwen-dev/agent-studio/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB *gorm.DB
}

func NewAuthHandler(conn *gorm.DB) *AuthHandler {
	return &AuthHandler{DB: conn}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)

	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	fullName := req.FullName
	if fullName == "" {
		fullName = req.Username
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     fullName,
		PasswordHash: string(passwordHash),
		IsActive:     true,
	}

	// The pre-checks pick the specific conflict message; the unique
	// indexes catch whichever writer loses a concurrent registration.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.User

		err := tx.Where("username = ?", req.Username).First(&existing).Error

		if err == nil {
			return errUsernameTaken
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("email = ?", req.Email).First(&existing).Error

		if err == nil {
			return errEmailTaken
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(&user).Error
	})

	if err != nil {
		switch {
		case errors.Is(err, errUsernameTaken):
			respondError(ctx, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, errEmailTaken):
			respondError(ctx, http.StatusBadRequest, "Email already exists")
		case errors.Is(err, gorm.ErrDuplicatedKey):
			respondError(ctx, http.StatusBadRequest, "Username or email already exists")
		default:
			log.Printf("Failed to create user: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondOK(ctx, http.StatusCreated, "User registered successfully", userResponse(user))
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	var user models.User

	err := h.DB.Where("username = ?", req.Username).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		log.Printf("Database error when fetching user: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(ctx, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	if !user.IsActive {
		respondError(ctx, http.StatusUnauthorized, "User account is inactive")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username)

	if err != nil {
		log.Printf("Failed to generate JWT: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Login successful", gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         userResponse(user),
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var user models.User

	if err := h.DB.First(&user, currentUser.ID).Error; err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not found")
		return
	}

	respondOK(ctx, http.StatusOK, "User information retrieved successfully", userResponse(user))
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	// Tokens are stateless; the client discards its copy.
	respondOK(ctx, http.StatusOK, "Logout successful", gin.H{})
}

func userResponse(user models.User) types.UserResponse {
	return types.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
	}
}
