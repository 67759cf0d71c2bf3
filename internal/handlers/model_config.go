package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/jiuwen-dev/agent-studio/internal/types"
	"github.com/jiuwen-dev/agent-studio/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ModelConfigHandler struct {
	DB *gorm.DB
}

func NewModelConfigHandler(conn *gorm.DB) *ModelConfigHandler {
	return &ModelConfigHandler{DB: conn}
}

type CreateModelConfigRequest struct {
	Name      string         `json:"name" binding:"required,max=100"`
	Provider  string         `json:"provider" binding:"required"`
	ModelType string         `json:"model_type" binding:"required"`
	APIKey    string         `json:"api_key"`
	BaseURL   string         `json:"base_url"`
	Config    map[string]any `json:"config"`
	IsActive  *bool          `json:"is_active"`
	IsDefault bool           `json:"is_default"`
}

type UpdateModelConfigRequest struct {
	Name      *string         `json:"name" binding:"omitempty,max=100"`
	Provider  *string         `json:"provider"`
	ModelType *string         `json:"model_type"`
	APIKey    *string         `json:"api_key"`
	BaseURL   *string         `json:"base_url"`
	Config    *map[string]any `json:"config"`
	IsActive  *bool           `json:"is_active"`
	IsDefault *bool           `json:"is_default"`
}

type ModelConfigResponse struct {
	ID        uint           `json:"id"`
	Name      string         `json:"name"`
	Provider  string         `json:"provider"`
	ModelType string         `json:"model_type"`
	APIKey    string         `json:"api_key"`
	BaseURL   string         `json:"base_url"`
	Config    datatypes.JSON `json:"config"`
	IsActive  bool           `json:"is_active"`
	IsDefault bool           `json:"is_default"`
	CreatedBy uint           `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (h *ModelConfigHandler) ListModelConfigs(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	pager := utils.GetPagination(ctx)

	query := h.DB.Model(&models.ModelConfig{})

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if provider := ctx.Query("provider"); provider != "" {
		query = query.Where("provider = ?", provider)
	}

	if isActive := ctx.Query("is_active"); isActive != "" {
		query = query.Where("is_active = ?", isActive == "true")
	}

	if search := ctx.Query("search"); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64

	if err := query.Count(&total).Error; err != nil {
		log.Printf("Failed to count model configs: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	var configs []models.ModelConfig

	if err := query.Order("id").Offset(pager.Offset()).Limit(pager.Size).Find(&configs).Error; err != nil {
		log.Printf("Failed to list model configs: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]ModelConfigResponse, 0, len(configs))
	for _, config := range configs {
		items = append(items, modelConfigResponse(config))
	}

	respondOK(ctx, http.StatusOK, "Model configurations retrieved successfully", types.PagedList{
		Items: items,
		Total: total,
		Page:  pager.Page,
		Size:  pager.Size,
	})
}

func (h *ModelConfigHandler) GetModelConfig(ctx *gin.Context) {
	config, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	respondOK(ctx, http.StatusOK, "Model configuration retrieved successfully", modelConfigResponse(config))
}

func (h *ModelConfigHandler) CreateModelConfig(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req CreateModelConfigRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	configJSON, err := marshalJSONColumn(req.Config)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid config format")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	config := models.ModelConfig{
		Name:      strings.TrimSpace(req.Name),
		Provider:  req.Provider,
		ModelType: req.ModelType,
		APIKey:    req.APIKey,
		BaseURL:   req.BaseURL,
		Config:    configJSON,
		IsActive:  isActive,
		IsDefault: req.IsDefault,
		CreatedBy: currentUser.ID,
	}

	// Uniqueness check and default reassignment share the insert's
	// transaction so concurrent writers cannot both pass.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.ModelConfig

		err := tx.Where("name = ? AND created_by = ?", config.Name, currentUser.ID).First(&existing).Error

		if err == nil {
			return errNameTaken
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if config.IsDefault {
			if err := tx.Model(&models.ModelConfig{}).
				Where("created_by = ? AND is_default = ?", currentUser.ID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}

		return tx.Create(&config).Error
	})

	if err != nil {
		if errors.Is(err, errNameTaken) {
			respondError(ctx, http.StatusBadRequest, "Model configuration name already exists")
			return
		}
		log.Printf("Failed to create model config: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusCreated, "Model configuration created successfully", modelConfigResponse(config))
}

func (h *ModelConfigHandler) UpdateModelConfig(ctx *gin.Context) {
	config, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	var req UpdateModelConfigRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Provider != nil {
		updates["provider"] = *req.Provider
	}
	if req.ModelType != nil {
		updates["model_type"] = *req.ModelType
	}
	if req.APIKey != nil {
		updates["api_key"] = *req.APIKey
	}
	if req.BaseURL != nil {
		updates["base_url"] = *req.BaseURL
	}
	if req.Config != nil {
		configJSON, err := marshalJSONColumn(*req.Config)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid config format")
			return
		}
		updates["config"] = configJSON
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsDefault != nil {
		updates["is_default"] = *req.IsDefault
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if name, ok := updates["name"].(string); ok && name != config.Name {
			var existing models.ModelConfig

			err := tx.Where("name = ? AND created_by = ? AND id != ?", name, config.CreatedBy, config.ID).
				First(&existing).Error

			if err == nil {
				return errNameTaken
			}

			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if isDefault, ok := updates["is_default"].(bool); ok && isDefault {
			if err := tx.Model(&models.ModelConfig{}).
				Where("created_by = ? AND is_default = ? AND id != ?", config.CreatedBy, true, config.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}

		if len(updates) == 0 {
			return nil
		}

		return tx.Model(&config).Updates(updates).Error
	})

	if err != nil {
		if errors.Is(err, errNameTaken) {
			respondError(ctx, http.StatusBadRequest, "Model configuration name already exists")
			return
		}
		log.Printf("Failed to update model config: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.DB.First(&config, config.ID).Error; err != nil {
		log.Printf("Failed to refresh model config: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Model configuration updated successfully", modelConfigResponse(config))
}

func (h *ModelConfigHandler) DeleteModelConfig(ctx *gin.Context) {
	config, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	if err := h.DB.Unscoped().Delete(&config).Error; err != nil {
		log.Printf("Failed to delete model config: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Model configuration deleted successfully", gin.H{
		"id":   config.ID,
		"name": config.Name,
	})
}

// TestModelConfig simulates a provider connectivity check. No outbound call
// is made; real invocation happens in the execution service, not here.
func (h *ModelConfigHandler) TestModelConfig(ctx *gin.Context) {
	config, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	if !config.IsActive {
		respondError(ctx, http.StatusBadRequest, "Cannot test inactive model configuration")
		return
	}

	respondOK(ctx, http.StatusOK, "Model configuration test successful", gin.H{
		"id":          config.ID,
		"name":        config.Name,
		"provider":    config.Provider,
		"model_type":  config.ModelType,
		"test_id":     uuid.NewString(),
		"test_result": "Connection successful",
		"tested_at":   time.Now().Format(time.RFC3339),
	})
}

// fetchOwned loads the model config from the path id, enforcing ownership for
// non-superusers. On failure it writes the error response and returns false.
func (h *ModelConfigHandler) fetchOwned(ctx *gin.Context) (models.ModelConfig, bool) {
	var config models.ModelConfig

	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return config, false
	}

	configID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid model configuration ID")
		return config, false
	}

	query := h.DB.Where("id = ?", configID)

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if err := query.First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "Model configuration not found")
		} else {
			log.Printf("Failed to fetch model config: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return config, false
	}

	return config, true
}

func modelConfigResponse(config models.ModelConfig) ModelConfigResponse {
	apiKey := ""
	if config.APIKey != "" {
		apiKey = types.MaskedAPIKey
	}

	return ModelConfigResponse{
		ID:        config.ID,
		Name:      config.Name,
		Provider:  config.Provider,
		ModelType: config.ModelType,
		APIKey:    apiKey,
		BaseURL:   config.BaseURL,
		Config:    config.Config,
		IsActive:  config.IsActive,
		IsDefault: config.IsDefault,
		CreatedBy: config.CreatedBy,
		CreatedAt: config.CreatedAt,
		UpdatedAt: config.UpdatedAt,
	}
}
