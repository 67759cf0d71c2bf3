package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Agent struct {
	gorm.Model

	Name         string `gorm:"not null"`
	Description  string
	SystemPrompt string         `gorm:"not null"`
	ModelConfig  datatypes.JSON // provider, model name, sampling parameters
	ToolsConfig  datatypes.JSON
	IsActive     bool `gorm:"default:true"`
	CreatedBy    uint `gorm:"not null;index"`

	// Relationships
	Creator User `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
