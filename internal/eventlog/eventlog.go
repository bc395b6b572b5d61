// Package eventlog is the append-only, per-board sequenced record of every
// board mutation.
package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the page size when a query does not set one.
	DefaultLimit = 100
	// MaxLimit caps a single query page.
	MaxLimit = 1000
)

// QueryOpts selects events from one board's log.
type QueryOpts struct {
	After  int64      // only events with seq > After
	Since  *time.Time // only events created at or after Since
	Kinds  []string   // exact kind match; empty = all
	TaskID string
	Limit  int
	Recent bool // newest first instead of cursor order
}

// New builds an unsequenced event with payload marshalled to JSON.
func New(boardID string, taskID *string, kind, actor string, payload any) (*models.Event, error) {
	ev := &models.Event{
		BoardID: boardID,
		TaskID:  taskID,
		Kind:    kind,
		Actor:   actor,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("eventlog: marshal %s payload: %w", kind, err)
		}
		ev.Payload = datatypes.JSON(data)
	}
	return ev, nil
}

// InitSequence creates the sequence counter for a new board. It must run in
// the transaction that creates the board.
func InitSequence(tx *gorm.DB, boardID string) error {
	if err := tx.Create(&models.BoardSequence{BoardID: boardID}).Error; err != nil {
		return fmt.Errorf("eventlog: init sequence for %s: %w", boardID, err)
	}
	return nil
}

// Append assigns the board's next sequence number to ev and persists it.
// It must run inside the transaction that made the change ev records; the
// counter row stays locked until that transaction ends, so concurrent appends
// to the same board serialize while other boards proceed.
func Append(tx *gorm.DB, ev *models.Event) error {
	if ev.BoardID == "" {
		return fmt.Errorf("eventlog: append: board id is required")
	}
	if !ValidKind(ev.Kind) {
		return fmt.Errorf("eventlog: append: %w", kanban.New(kanban.InvalidEventType, "unknown kind %q", ev.Kind))
	}

	result := tx.Model(&models.BoardSequence{}).
		Where("board_id = ?", ev.BoardID).
		Update("value", gorm.Expr("value + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("eventlog: advance sequence for %s: %w", ev.BoardID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("eventlog: no sequence for board %s", ev.BoardID)
	}

	var seq models.BoardSequence
	if err := tx.Where("board_id = ?", ev.BoardID).First(&seq).Error; err != nil {
		return fmt.Errorf("eventlog: read sequence for %s: %w", ev.BoardID, err)
	}

	ev.Seq = seq.Value
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := tx.Create(ev).Error; err != nil {
		return fmt.Errorf("eventlog: append %s seq %d: %w", ev.Kind, ev.Seq, err)
	}
	return nil
}

// LastSeq returns the highest sequence number appended to the board, or 0.
func LastSeq(db *gorm.DB, boardID string) (int64, error) {
	var seq models.BoardSequence
	if err := db.Where("board_id = ?", boardID).Limit(1).Find(&seq).Error; err != nil {
		return 0, fmt.Errorf("eventlog: last seq for %s: %w", boardID, err)
	}
	return seq.Value, nil
}

// Query returns events for a board. Cursor mode (the default) is ascending by
// seq and gap-free when paged with After; Recent mode returns the newest
// events first.
func Query(db *gorm.DB, boardID string, opts QueryOpts) ([]models.Event, error) {
	for _, k := range opts.Kinds {
		if !ValidKind(k) {
			return nil, kanban.New(kanban.InvalidEventType, "unknown kind %q", k)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	q := db.Model(&models.Event{}).Where("board_id = ?", boardID)
	if opts.After > 0 {
		q = q.Where("seq > ?", opts.After)
	}
	if opts.Since != nil {
		q = q.Where("created_at >= ?", opts.Since.UTC())
	}
	if len(opts.Kinds) > 0 {
		q = q.Where("kind IN ?", opts.Kinds)
	}
	if opts.TaskID != "" {
		q = q.Where("task_id = ?", opts.TaskID)
	}
	if opts.Recent {
		q = q.Order("seq DESC")
	} else {
		q = q.Order("seq ASC")
	}

	var events []models.Event
	if err := q.Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("eventlog: query %s: %w", boardID, err)
	}
	return events, nil
}
