package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook is an outbound notification registration for a board. An empty
// Events list subscribes to every kind.
type Webhook struct {
	ID              string                      `gorm:"primaryKey;size:36" json:"id"`
	BoardID         string                      `gorm:"size:36;not null;index" json:"board_id"`
	URL             string                      `gorm:"type:text;not null" json:"url"`
	Events          datatypes.JSONSlice[string] `gorm:"type:json" json:"events"`
	Secret          string                      `gorm:"size:128;not null" json:"-"`
	Format          string                      `gorm:"size:16;not null" json:"format"`
	Active          bool                        `gorm:"index" json:"active"`
	FailureCount    int                         `gorm:"not null" json:"failure_count"`
	LastTriggeredAt *time.Time                  `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}
