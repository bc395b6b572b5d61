package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zulandar/corkboard/internal/config"
	"github.com/zulandar/corkboard/internal/db"
	"gorm.io/gorm"
)

const defaultConfigPath = "corkboard.yaml"

// loadConfig reads the config file. A missing file at the default path falls
// back to built-in defaults; a missing explicit path is an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return nil, fmt.Errorf("load config: %w", err)
}

// connectFromConfig loads config and opens a migrated database.
func connectFromConfig(path string) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}
