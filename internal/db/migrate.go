package db

import (
	"fmt"

	"github.com/zulandar/corkboard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model Corkboard persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.Board{},
		&models.BoardSequence{},
		&models.Column{},
		&models.Task{},
		&models.Comment{},
		&models.Event{},
		&models.Webhook{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
