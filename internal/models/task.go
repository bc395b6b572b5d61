package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task is a unit of work living in exactly one column. ClaimedBy is the
// active-work lock and is deliberately separate from Assignee.
type Task struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	BoardID     string                      `gorm:"size:36;not null;index" json:"board_id"`
	ColumnID    string                      `gorm:"size:36;not null;index" json:"column_id"`
	Title       string                      `gorm:"size:512" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Priority    int                         `gorm:"not null" json:"priority"`
	Position    int                         `gorm:"not null" json:"position"`
	Assignee    string                      `gorm:"size:128;index" json:"assignee"`
	ClaimedBy   string                      `gorm:"size:128;index" json:"claimed_by"`
	ClaimedAt   *time.Time                  `json:"claimed_at,omitempty"`
	Labels      datatypes.JSONSlice[string] `gorm:"type:json" json:"labels"`
	Metadata    datatypes.JSON              `gorm:"type:json" json:"metadata,omitempty"`
	DueAt       *time.Time                  `json:"due_at,omitempty"`
	CompletedAt *time.Time                  `json:"completed_at,omitempty"`
	ArchivedAt  *time.Time                  `gorm:"index" json:"archived_at,omitempty"`
	CreatedBy   string                      `gorm:"size:128" json:"created_by"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// IsArchived reports whether the task is excluded from WIP counts.
func (t *Task) IsArchived() bool {
	return t.ArchivedAt != nil
}

// Comment is a note attached to a task.
type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID    string    `gorm:"size:36;not null;index" json:"task_id"`
	BoardID   string    `gorm:"size:36;not null;index" json:"board_id"`
	Author    string    `gorm:"size:128" json:"author"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
