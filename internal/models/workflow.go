package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Workflow struct {
	gorm.Model

	Name          string `gorm:"not null"`
	Description   string
	Status        string `gorm:"not null"` // "running", "stopped", "scheduled", "error", "completed"
	Trigger       string `gorm:"not null"` // "manual", "scheduled", "webhook"
	LastRun       *time.Time
	NextRun       *time.Time
	SuccessRate   int
	ExecutionTime string
	NodeCount     int
	Tags          datatypes.JSON
	Canvas        datatypes.JSON // nodes + edges as drawn on the editor
	CreatedBy     uint           `gorm:"not null;index"`

	// Relationships
	Creator User           `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Nodes   []WorkflowNode `gorm:"foreignKey:WorkflowID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

type WorkflowNode struct {
	gorm.Model

	WorkflowID  uint   `gorm:"not null;index"`
	NodeType    string `gorm:"not null"` // "llm", "tool", "condition", "input", "output"
	Name        string `gorm:"not null"`
	PositionX   int
	PositionY   int
	Config      datatypes.JSON
	Connections datatypes.JSON

	// Relationships
	Workflow Workflow `gorm:"foreignKey:WorkflowID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
