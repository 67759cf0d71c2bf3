package handlers

import (
	"encoding/json"
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

type WorkflowHandler struct {
	DB     *gorm.DB
	Events *EventHub
}

func NewWorkflowHandler(conn *gorm.DB, events *EventHub) *WorkflowHandler {
	return &WorkflowHandler{DB: conn, Events: events}
}

type CreateWorkflowNodeRequest struct {
	NodeType    string         `json:"node_type" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	PositionX   int            `json:"position_x"`
	PositionY   int            `json:"position_y"`
	Config      map[string]any `json:"config"`
	Connections map[string]any `json:"connections"`
}

type CreateWorkflowRequest struct {
	Name        string                      `json:"name" binding:"required,max=255"`
	Description string                      `json:"description"`
	Trigger     string                      `json:"trigger"`
	Tags        []string                    `json:"tags"`
	Canvas      map[string]any              `json:"workflow_data"`
	Nodes       []CreateWorkflowNodeRequest `json:"nodes"`
}

type UpdateWorkflowRequest struct {
	Name        *string         `json:"name" binding:"omitempty,max=255"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Trigger     *string         `json:"trigger"`
	Tags        *[]string       `json:"tags"`
	Canvas      *map[string]any `json:"workflow_data"`
}

type WorkflowNodeResponse struct {
	ID          uint           `json:"id"`
	WorkflowID  uint           `json:"workflow_id"`
	NodeType    string         `json:"node_type"`
	Name        string         `json:"name"`
	PositionX   int            `json:"position_x"`
	PositionY   int            `json:"position_y"`
	Config      datatypes.JSON `json:"config"`
	Connections datatypes.JSON `json:"connections"`
}

type WorkflowResponse struct {
	ID            uint                   `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Status        string                 `json:"status"`
	Trigger       string                 `json:"trigger"`
	LastRun       *time.Time             `json:"last_run"`
	NextRun       *time.Time             `json:"next_run"`
	SuccessRate   int                    `json:"success_rate"`
	ExecutionTime string                 `json:"execution_time"`
	NodeCount     int                    `json:"nodes"`
	Tags          datatypes.JSON         `json:"tags"`
	Canvas        datatypes.JSON         `json:"workflow_data"`
	CreatedBy     uint                   `json:"created_by"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	NodeRecords   []WorkflowNodeResponse `json:"node_records,omitempty"`
}

func (h *WorkflowHandler) ListWorkflows(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	pager := utils.GetPagination(ctx)

	query := h.DB.Model(&models.Workflow{})

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if status := ctx.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if search := ctx.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64

	if err := query.Count(&total).Error; err != nil {
		log.Printf("Failed to count workflows: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	var workflows []models.Workflow

	if err := query.Order("id").Offset(pager.Offset()).Limit(pager.Size).Find(&workflows).Error; err != nil {
		log.Printf("Failed to list workflows: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]WorkflowResponse, 0, len(workflows))
	for _, workflow := range workflows {
		items = append(items, workflowResponse(workflow, nil))
	}

	respondOK(ctx, http.StatusOK, "Workflows retrieved successfully", types.PagedList{
		Items: items,
		Total: total,
		Page:  pager.Page,
		Size:  pager.Size,
	})
}

func (h *WorkflowHandler) GetWorkflow(ctx *gin.Context) {
	workflow, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	var nodes []models.WorkflowNode

	if err := h.DB.Where("workflow_id = ?", workflow.ID).Order("id").Find(&nodes).Error; err != nil {
		log.Printf("Failed to fetch workflow nodes: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusOK, "Workflow retrieved successfully", workflowResponse(workflow, nodes))
}

func (h *WorkflowHandler) CreateWorkflow(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req CreateWorkflowRequest

	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid request")
		return
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = types.WorkflowTriggerManual
	}

	if !types.ValidWorkflowTrigger(trigger) {
		respondError(ctx, http.StatusBadRequest, "Invalid workflow trigger")
		return
	}

	tagsJSON, err := marshalJSONColumn(req.Tags)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid tags format")
		return
	}

	canvasJSON, err := marshalJSONColumn(req.Canvas)

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid workflow data format")
		return
	}

	canvasRecords := canvasNodes(canvasJSON)

	nodeCount := len(req.Nodes)
	if nodeCount == 0 {
		nodeCount = len(canvasRecords)
	}

	workflow := models.Workflow{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      types.WorkflowStatusStopped,
		Trigger:     trigger,
		NodeCount:   nodeCount,
		Tags:        tagsJSON,
		Canvas:      canvasJSON,
		CreatedBy:   currentUser.ID,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workflow).Error; err != nil {
			return err
		}

		for _, node := range req.Nodes {
			configJSON, err := marshalJSONColumn(node.Config)
			if err != nil {
				return err
			}

			connectionsJSON, err := marshalJSONColumn(node.Connections)
			if err != nil {
				return err
			}

			record := models.WorkflowNode{
				WorkflowID:  workflow.ID,
				NodeType:    node.NodeType,
				Name:        node.Name,
				PositionX:   node.PositionX,
				PositionY:   node.PositionY,
				Config:      configJSON,
				Connections: connectionsJSON,
			}

			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}

		if len(req.Nodes) == 0 {
			for _, node := range canvasRecords {
				record, err := nodeFromCanvas(workflow.ID, node)
				if err != nil {
					return err
				}

				if err := tx.Create(&record).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})

	if err != nil {
		log.Printf("Failed to create workflow: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondOK(ctx, http.StatusCreated, "Workflow created successfully", workflowResponse(workflow, nil))
}

func (h *WorkflowHandler) UpdateWorkflow(ctx *gin.Context) {
	workflow, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	var req UpdateWorkflowRequest

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
	if req.Status != nil {
		if !types.ValidWorkflowStatus(*req.Status) {
			respondError(ctx, http.StatusBadRequest, "Invalid workflow status")
			return
		}
		updates["status"] = *req.Status
	}
	if req.Trigger != nil {
		if !types.ValidWorkflowTrigger(*req.Trigger) {
			respondError(ctx, http.StatusBadRequest, "Invalid workflow trigger")
			return
		}
		updates["trigger"] = *req.Trigger
	}
	if req.Tags != nil {
		tagsJSON, err := marshalJSONColumn(*req.Tags)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid tags format")
			return
		}
		updates["tags"] = tagsJSON
	}

	var canvasRecords []canvasNode
	replaceNodes := false

	if req.Canvas != nil {
		canvasJSON, err := marshalJSONColumn(*req.Canvas)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, "Invalid workflow data format")
			return
		}
		canvasRecords = canvasNodes(canvasJSON)
		replaceNodes = true
		updates["canvas"] = canvasJSON
		updates["node_count"] = len(canvasRecords)
	}

	// A new canvas replaces the stored node records so the two never
	// disagree.
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if replaceNodes {
			if err := tx.Unscoped().Where("workflow_id = ?", workflow.ID).
				Delete(&models.WorkflowNode{}).Error; err != nil {
				return err
			}

			for _, node := range canvasRecords {
				record, err := nodeFromCanvas(workflow.ID, node)
				if err != nil {
					return err
				}

				if err := tx.Create(&record).Error; err != nil {
					return err
				}
			}
		}

		if len(updates) == 0 {
			return nil
		}

		return tx.Model(&workflow).Updates(updates).Error
	})

	if err != nil {
		log.Printf("Failed to update workflow: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.DB.First(&workflow, workflow.ID).Error; err != nil {
		log.Printf("Failed to refresh workflow: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.Events.Broadcast(WorkflowEvent{
		Type:       "workflow_updated",
		WorkflowID: workflow.ID,
		Status:     workflow.Status,
	})

	respondOK(ctx, http.StatusOK, "Workflow updated successfully", workflowResponse(workflow, nil))
}

func (h *WorkflowHandler) DeleteWorkflow(ctx *gin.Context) {
	workflow, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	// Child nodes go with the workflow.
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("workflow_id = ?", workflow.ID).
			Delete(&models.WorkflowNode{}).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(&workflow).Error
	})

	if err != nil {
		log.Printf("Failed to delete workflow: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.Events.Broadcast(WorkflowEvent{
		Type:       "workflow_deleted",
		WorkflowID: workflow.ID,
	})

	respondOK(ctx, http.StatusOK, "Workflow deleted successfully", gin.H{
		"id":   workflow.ID,
		"name": workflow.Name,
	})
}

// RunWorkflow flips the workflow into the running state. Actual execution
// happens in an external engine; this only records the dispatch.
func (h *WorkflowHandler) RunWorkflow(ctx *gin.Context) {
	workflow, ok := h.fetchOwned(ctx)
	if !ok {
		return
	}

	if workflow.Status == types.WorkflowStatusRunning {
		respondError(ctx, http.StatusBadRequest, "Workflow is already running")
		return
	}

	now := time.Now()

	updates := map[string]interface{}{
		"status":   types.WorkflowStatusRunning,
		"last_run": now,
	}

	if err := h.DB.Model(&workflow).Updates(updates).Error; err != nil {
		log.Printf("Failed to start workflow: %v", err)
		respondError(ctx, http.StatusInternalServerError, "Internal server error")
		return
	}

	executionID := uuid.NewString()

	h.Events.Broadcast(WorkflowEvent{
		Type:        "workflow_started",
		WorkflowID:  workflow.ID,
		Status:      types.WorkflowStatusRunning,
		ExecutionID: executionID,
	})

	respondOK(ctx, http.StatusOK, "Workflow started successfully", gin.H{
		"id":           workflow.ID,
		"status":       types.WorkflowStatusRunning,
		"execution_id": executionID,
		"last_run":     now.Format(time.RFC3339),
	})
}

func (h *WorkflowHandler) fetchOwned(ctx *gin.Context) (models.Workflow, bool) {
	var workflow models.Workflow

	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return workflow, false
	}

	workflowID, err := utils.ParseID(ctx.Param("id"))

	if err != nil {
		respondError(ctx, http.StatusBadRequest, "Invalid workflow ID")
		return workflow, false
	}

	query := h.DB.Where("id = ?", workflowID)

	if !currentUser.IsSuperuser {
		query = query.Where("created_by = ?", currentUser.ID)
	}

	if err := query.First(&workflow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, http.StatusNotFound, "Workflow not found")
		} else {
			log.Printf("Failed to fetch workflow: %v", err)
			respondError(ctx, http.StatusInternalServerError, "Internal server error")
		}
		return workflow, false
	}

	return workflow, true
}

type canvasNode struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
	Data map[string]any `json:"data"`
}

func canvasNodes(canvas datatypes.JSON) []canvasNode {
	if len(canvas) == 0 {
		return nil
	}

	var payload struct {
		Nodes []canvasNode `json:"nodes"`
	}

	if err := json.Unmarshal(canvas, &payload); err != nil {
		return nil
	}

	return payload.Nodes
}

func nodeFromCanvas(workflowID uint, node canvasNode) (models.WorkflowNode, error) {
	var configJSON datatypes.JSON

	if node.Data != nil {
		raw, err := marshalJSONColumn(node.Data)
		if err != nil {
			return models.WorkflowNode{}, err
		}
		configJSON = raw
	}

	nodeType := node.Type
	if nodeType == "" {
		nodeType = "custom"
	}

	name := node.Name
	if name == "" {
		name = node.ID
	}

	return models.WorkflowNode{
		WorkflowID: workflowID,
		NodeType:   nodeType,
		Name:       name,
		PositionX:  node.Position.X,
		PositionY:  node.Position.Y,
		Config:     configJSON,
	}, nil
}

func workflowResponse(workflow models.Workflow, nodes []models.WorkflowNode) WorkflowResponse {
	response := WorkflowResponse{
		ID:            workflow.ID,
		Name:          workflow.Name,
		Description:   workflow.Description,
		Status:        workflow.Status,
		Trigger:       workflow.Trigger,
		LastRun:       workflow.LastRun,
		NextRun:       workflow.NextRun,
		SuccessRate:   workflow.SuccessRate,
		ExecutionTime: workflow.ExecutionTime,
		NodeCount:     workflow.NodeCount,
		Tags:          workflow.Tags,
		Canvas:        workflow.Canvas,
		CreatedBy:     workflow.CreatedBy,
		CreatedAt:     workflow.CreatedAt,
		UpdatedAt:     workflow.UpdatedAt,
	}

	for _, node := range nodes {
		response.NodeRecords = append(response.NodeRecords, WorkflowNodeResponse{
			ID:          node.ID,
			WorkflowID:  node.WorkflowID,
			NodeType:    node.NodeType,
			Name:        node.Name,
			PositionX:   node.PositionX,
			PositionY:   node.PositionY,
			Config:      node.Config,
			Connections: node.Connections,
		})
	}

	return response
}
