package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event is one immutable entry in a board's log. Seq is strictly increasing
// per board and is the only safe cursor for incremental reads.
type Event struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	BoardID   string         `gorm:"size:36;not null;uniqueIndex:idx_event_board_seq,priority:1" json:"board_id"`
	Seq       int64          `gorm:"not null;uniqueIndex:idx_event_board_seq,priority:2" json:"seq"`
	TaskID    *string        `gorm:"size:36;index" json:"task_id,omitempty"`
	Kind      string         `gorm:"size:32;not null;index" json:"kind"`
	Actor     string         `gorm:"size:128" json:"actor,omitempty"`
	Payload   datatypes.JSON `gorm:"type:json" json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
