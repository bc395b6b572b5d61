package models

import "time"

// Board is the top-level shared workspace. Writes require the board's
// capability token, which is stored only as a salted hash.
type Board struct {
	ID                    string     `gorm:"primaryKey;size:36" json:"id"`
	Name                  string     `gorm:"size:256;not null" json:"name"`
	Description           string     `gorm:"type:text" json:"description"`
	Listed                bool       `gorm:"index" json:"listed"`
	TokenHash             string     `gorm:"size:64;not null" json:"-"`
	TokenSalt             string     `gorm:"size:32;not null" json:"-"`
	RequireDisplayName    bool       `json:"require_display_name"`
	QuickDoneColumnID     *string    `gorm:"size:36" json:"quick_done_column_id,omitempty"`
	QuickReassignColumnID *string    `gorm:"size:36" json:"quick_reassign_column_id,omitempty"`
	Archived              bool       `gorm:"index" json:"archived"`
	ArchivedAt            *time.Time `json:"archived_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`

	Columns []Column `gorm:"foreignKey:BoardID" json:"columns,omitempty"`
}

// BoardSequence is the per-board event sequence counter. It lives in its own
// table so appends contend only with other appends on the same board.
type BoardSequence struct {
	BoardID string `gorm:"primaryKey;size:36"`
	Value   int64  `gorm:"not null"`
}

// Column is an ordered lane on a board. A nil WIPLimit means unlimited. An
// archived column keeps its tasks and its place in the order but accepts no
// new entries.
type Column struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	BoardID    string     `gorm:"size:36;not null;index" json:"board_id"`
	Name       string     `gorm:"size:128;not null" json:"name"`
	Position   int        `gorm:"not null" json:"position"`
	WIPLimit   *int       `gorm:"column:wip_limit" json:"wip_limit,omitempty"`
	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
