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

type AgentHandler struct {
	DB *gorm.DB
}

func NewAgentHandler(conn *gorm.DB) *AgentHandler {
	return &AgentHandler{DB: conn}
}

type CreateAgentRequest struct {
	Name         string         `json:"name" binding:"required,max=255"`
	Description  string         `json:"description"`
	SystemPrompt string         `json:"system_prompt" binding:"required"`
	ModelConfig  map[string]any `json:"model_config"`
	ToolsConfig  map[string]any `json:"tools_config"`
	IsActive     *bool          `json:"is_active"`
}

type UpdateAgentRequest struct {
	Name         *string         `json:"name" binding:"omitempty,max=255"`
	Description  *string         `json:"description"`
	SystemPrompt *string         `json:"system_prompt"`
	ModelConfig  *map[string]any `json:"model_config"`
	ToolsConfig  *map[string]any `json:"tools_config"`
	IsActive     *bool           `json:"is_active"`
}

type AgentResponse struct {
	ID           uint           `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	SystemPrompt string         `json:"system_prompt"`
	ModelConfig  datatypes.JSON `json:"model_config"`
	ToolsConfig  datatypes.JSON `json:"tools_config"`
	IsActive     bool           `json:"is_active"`
	CreatedBy    uint           `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (h *AgentHandler) ListAgents(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	pager := utils.GetPagination(ctx)

	query := h.DB.Model(&models.Agent{})

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
		log.Printf("Failed to count agents: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	var agents []models.Agent

	if err := query.Order("id").Offset(pager.Offset()).Limit(pager.Size).Find(&agents).Error; err != nil {
		log.Printf("Failed to list agents: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]AgentResponse, 0, len(agents))
	for _, agent := range agents {
		items = append(items, agentResponse(agent))
	}

	respondOK(ctx, http.StatusOK, "Agents retrieved successfully", types.PagedList{
		Items: items,
		Total: total,
		Page:  pager.Page,
		Size:  pager.Size,
	})
}

func (h *AgentHandler) GetAgent(ctx *gin.Context) {
	agent, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	respondOK(ctx, http.StatusOK, "Agent retrieved successfully", agentResponse(agent))
}

func (h *AgentHandler) CreateAgent(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req CreateAgentRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	modelConfigJSON, err := marshalJSONColumn(req.ModelConfig)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid model config format")
		return
	}

	toolsConfigJSON, err := marshalJSONColumn(req.ToolsConfig)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid tools config format")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	agent := models.Agent{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		ModelConfig:  modelConfigJSON,
		ToolsConfig:  toolsConfigJSON,
		IsActive:     isActive,
		CreatedBy:    currentUser.ID,
	}

	if err := h.DB.Create(&agent).Error; err != nil {
		log.Printf("Failed to create agent: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusCreated, "Agent created successfully", agentResponse(agent))
}

func (h *AgentHandler) UpdateAgent(ctx *gin.Context) {
	agent, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	var req UpdateAgentRequest

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
	if req.SystemPrompt != nil {
		updates["system_prompt"] = *req.SystemPrompt
	}
	if req.ModelConfig != nil {
		modelConfigJSON, err := marshalJSONColumn(*req.ModelConfig)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid model config format")
			return
		}
		updates["model_config"] = modelConfigJSON
	}
	if req.ToolsConfig != nil {
		toolsConfigJSON, err := marshalJSONColumn(*req.ToolsConfig)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid tools config format")
			return
		}
		updates["tools_config"] = toolsConfigJSON
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := h.DB.Model(&agent).Updates(updates).Error; err != nil {
			log.Printf("Failed to update agent: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	if err := h.DB.First(&agent, agent.ID).Error; err != nil {
		log.Printf("Failed to refresh agent: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Agent updated successfully", agentResponse(agent))
}

func (h *AgentHandler) DeleteAgent(ctx *gin.Context) {
	agent, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	if err := h.DB.Unscoped().Delete(&agent).Error; err != nil {
		log.Printf("Failed to delete agent: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Agent deleted successfully", gin.H{
		"id":   agent.ID,
		"name": agent.Name,
	})
}

func (h *AgentHandler) fetchOwned(ctx *gin.Context) (models.Agent, bool) {
	var agent models.Agent

	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return agent, false
	}

	agentID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid agent ID")
		return agent, false
	}

	query := h.DB.Where("id = ?", agentID)

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if err := query.First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "Agent not found")
		} else {
			log.Printf("Failed to fetch agent: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return agent, false
	}

	return agent, true
}

func agentResponse(agent models.Agent) AgentResponse {
	return AgentResponse{
		ID:           agent.ID,
		Name:         agent.Name,
		Description:  agent.Description,
		SystemPrompt: agent.SystemPrompt,
		ModelConfig:  agent.ModelConfig,
		ToolsConfig:  agent.ToolsConfig,
		IsActive:     agent.IsActive,
		CreatedBy:    agent.CreatedBy,
		CreatedAt:    agent.CreatedAt,
		UpdatedAt:    agent.UpdatedAt,
	}
}
