package models

import "gorm.io/gorm"

type User struct {
	gorm.Model

	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	FullName     string
	PasswordHash string `gorm:"not null"`
	IsActive     bool   `gorm:"default:true"`
	IsSuperuser  bool   `gorm:"default:false"`

	// Relationships
	ModelConfigs []ModelConfig `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Workflows    []Workflow    `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Agents       []Agent       `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Prompts      []Prompt      `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
