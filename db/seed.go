package db

import (
	"errors"
	"fmt"
	"os"

	"github.com/jiuwen-dev/agent-studio/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin creates the bootstrap superuser from ADMIN_* environment
// variables when no superuser exists yet. A no-op otherwise.
func SeedAdmin(conn *gorm.DB) error {
	var existing models.User

	err := conn.Where("is_superuser = ?", true).First(&existing).Error

	if err == nil {
		return nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	username := os.Getenv("ADMIN_USERNAME")
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")

	if username == "" || email == "" || password == "" {
		return fmt.Errorf("no superuser exists and ADMIN_USERNAME/ADMIN_EMAIL/ADMIN_PASSWORD are not set")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return err
	}

	admin := models.User{
		Username:     username,
		Email:        email,
		FullName:     username,
		PasswordHash: string(passwordHash),
		IsActive:     true,
		IsSuperuser:  true,
	}

	return conn.Create(&admin).Error
}
