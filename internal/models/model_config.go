package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ModelConfig struct {
	gorm.Model

	Name      string `gorm:"not null;index"`
	Provider  string `gorm:"not null"` // "openai", "anthropic", "deepseek", "qwen", etc.
	ModelType string `gorm:"not null"` // "gpt-4", "claude-3", etc.
	APIKey    string
	BaseURL   string // for custom endpoints
	Config    datatypes.JSON
	IsActive  bool `gorm:"default:true"`
	IsDefault bool `gorm:"default:false"`
	CreatedBy uint `gorm:"not null;index"`

	// Relationships
	Creator User `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
