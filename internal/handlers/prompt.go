package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/jiuwen-dev/agent-studio/internal/types"
	"github.com/jiuwen-dev/agent-studio/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PromptHandler struct {
	DB *gorm.DB
}

func NewPromptHandler(conn *gorm.DB) *PromptHandler {
	return &PromptHandler{DB: conn}
}

type CreatePromptRequest struct {
	Name        string         `json:"name" binding:"required,max=255"`
	Description string         `json:"description"`
	Content     string         `json:"content" binding:"required"`
	Variables   map[string]any `json:"variables"`
	Tags        []string       `json:"tags"`
	IsActive    *bool          `json:"is_active"`
}

type UpdatePromptRequest struct {
	Name        *string         `json:"name" binding:"omitempty,max=255"`
	Description *string         `json:"description"`
	Content     *string         `json:"content"`
	Variables   *map[string]any `json:"variables"`
	Tags        *[]string       `json:"tags"`
	IsActive    *bool           `json:"is_active"`
}

type PromptResponse struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Content     string         `json:"content"`
	Variables   datatypes.JSON `json:"variables"`
	Tags        datatypes.JSON `json:"tags"`
	Version     int            `json:"version"`
	IsActive    bool           `json:"is_active"`
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (h *PromptHandler) ListPrompts(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	pager := utils.GetPagination(ctx)

	query := h.DB.Model(&models.Prompt{})

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if isActive := ctx.Query("is_active"); isActive != "" {
		query = query.Where("is_active = ?", isActive == "true")
	}

	if search := ctx.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64

	if err := query.Count(&total).Error; err != nil {
		log.Printf("Failed to count prompts: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	var prompts []models.Prompt

	if err := query.Order("id").Offset(pager.Offset()).Limit(pager.Size).Find(&prompts).Error; err != nil {
		log.Printf("Failed to list prompts: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]PromptResponse, 0, len(prompts))
	for _, prompt := range prompts {
		items = append(items, promptResponse(prompt))
	}

	respondOK(ctx, http.StatusOK, "Prompts retrieved successfully", types.PagedList{
		Items: items,
		Total: total,
		Page:  pager.Page,
		Size:  pager.Size,
	})
}

func (h *PromptHandler) GetPrompt(ctx *gin.Context) {
	prompt, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	respondOK(ctx, http.StatusOK, "Prompt retrieved successfully", promptResponse(prompt))
}

func (h *PromptHandler) CreatePrompt(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req CreatePromptRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	variablesJSON, err := marshalJSONColumn(req.Variables)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid variables format")
		return
	}

	tagsJSON, err := marshalJSONColumn(req.Tags)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid tags format")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	prompt := models.Prompt{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Content:     req.Content,
		Variables:   variablesJSON,
		Tags:        tagsJSON,
		Version:     1,
		IsActive:    isActive,
		CreatedBy:   currentUser.ID,
	}

	if err := h.DB.Create(&prompt).Error; err != nil {
		log.Printf("Failed to create prompt: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusCreated, "Prompt created successfully", promptResponse(prompt))
}

func (h *PromptHandler) UpdatePrompt(ctx *gin.Context) {
	prompt, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	var req UpdatePromptRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Variables != nil {
		variablesJSON, err := marshalJSONColumn(*req.Variables)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid variables format")
			return
		}
		updates["variables"] = variablesJSON
	}
	if req.Tags != nil {
		tagsJSON, err := marshalJSONColumn(*req.Tags)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid tags format")
			return
		}
		updates["tags"] = tagsJSON
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := h.DB.Model(&prompt).Updates(updates).Error; err != nil {
			log.Printf("Failed to update prompt: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	if err := h.DB.First(&prompt, prompt.ID).Error; err != nil {
		log.Printf("Failed to refresh prompt: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Prompt updated successfully", promptResponse(prompt))
}

func (h *PromptHandler) DeletePrompt(ctx *gin.Context) {
	prompt, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	if err := h.DB.Unscoped().Delete(&prompt).Error; err != nil {
		log.Printf("Failed to delete prompt: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Prompt deleted successfully", gin.H{
		"id":   prompt.ID,
		"name": prompt.Name,
	})
}

func (h *PromptHandler) fetchOwned(ctx *gin.Context) (models.Prompt, bool) {
	var prompt models.Prompt

	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return prompt, false
	}

	promptID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid prompt ID")
		return prompt, false
	}

	query := h.DB.Where("id = ?", promptID)

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if err := query.First(&prompt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "Prompt not found")
		} else {
			log.Printf("Failed to fetch prompt: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return prompt, false
	}

	return prompt, true
}

func promptResponse(prompt models.Prompt) PromptResponse {
	return PromptResponse{
		ID:          prompt.ID,
		Name:        prompt.Name,
		Description: prompt.Description,
		Content:     prompt.Content,
		Variables:   prompt.Variables,
		Tags:        prompt.Tags,
		Version:     prompt.Version,
		IsActive:    prompt.IsActive,
		CreatedBy:   prompt.CreatedBy,
		CreatedAt:   prompt.CreatedAt,
		UpdatedAt:   prompt.UpdatedAt,
	}
}
