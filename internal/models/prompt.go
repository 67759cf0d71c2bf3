package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Prompt struct {
	gorm.Model

	Name        string `gorm:"not null"`
	Description string
	Content     string `gorm:"not null"`
	Variables   datatypes.JSON
	Tags        datatypes.JSON
	Version     int  `gorm:"default:1"`
	IsActive    bool `gorm:"default:true"`
	CreatedBy   uint `gorm:"not null;index"`

	// Relationships
	Creator User `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
