package db

import (
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	// TranslateError maps unique-index violations to gorm.ErrDuplicatedKey
	// so handlers can answer conflicts with 400 instead of 500.
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

func Migrate(conn *gorm.DB) error {
	tables := []interface{}{
		&models.User{},
		&models.ModelConfig{},
		&models.Workflow{},
		&models.WorkflowNode{},
		&models.Agent{},
		&models.Prompt{},
	}

	migrator := conn.Migrator()

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := conn.AutoMigrate(table); err != nil {
				return err
			}
		}
	}

	return nil
}
