package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"gorm.io/gorm"
)

// ColumnOpts holds parameters for creating a column. A WIPLimit of nil or
// <= 0 means unlimited.
type ColumnOpts struct {
	Name     string `json:"name"`
	WIPLimit *int   `json:"wip_limit"`
}

// UpdateColumnOpts is a partial column update. Setting WIPLimit to a value
// <= 0 removes the limit.
type UpdateColumnOpts struct {
	Name     *string `json:"name"`
	WIPLimit *int    `json:"wip_limit"`
}

// CreateColumn appends a column to the end of the board.
func (s *Service) CreateColumn(ctx context.Context, auth Auth, boardID string, opts ColumnOpts) (*models.Column, error) {
	name := strings.TrimSpace(opts.Name)
	var col *models.Column
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		if name == "" {
			return nil, kanban.New(kanban.EmptyName, "column name is required")
		}
		var count int64
		if err := w.tx.Model(&models.Column{}).Where("board_id = ?", boardID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("board: count columns: %w", err)
		}
		col = &models.Column{
			ID:        newID(),
			BoardID:   boardID,
			Name:      name,
			Position:  int(count),
			WIPLimit:  normalizeWIP(opts.WIPLimit),
			CreatedAt: w.now,
			UpdatedAt: w.now,
		}
		if err := w.tx.Create(col).Error; err != nil {
			return nil, fmt.Errorf("board: create column: %w", err)
		}
		return w.event(nil, eventlog.ColumnCreated, col)
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// UpdateColumn renames a column or changes its WIP limit. Lowering a limit
// below the current task count is allowed; it only blocks further entries.
func (s *Service) UpdateColumn(ctx context.Context, auth Auth, boardID, columnID string, opts UpdateColumnOpts) (*models.Column, error) {
	var col *models.Column
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		c, err := getColumn(w.tx, boardID, columnID)
		if err != nil {
			return nil, err
		}
		updates := map[string]any{}
		if opts.Name != nil {
			name := strings.TrimSpace(*opts.Name)
			if name == "" {
				return nil, kanban.New(kanban.EmptyName, "column name is required")
			}
			updates["name"] = name
		}
		if opts.WIPLimit != nil {
			updates["wip_limit"] = normalizeWIP(opts.WIPLimit)
		}
		if len(updates) == 0 {
			col = c
			return nil, nil
		}
		updates["updated_at"] = w.now
		if err := w.tx.Model(c).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("board: update column %s: %w", columnID, err)
		}
		col, err = getColumn(w.tx, boardID, columnID)
		if err != nil {
			return nil, err
		}
		return w.event(nil, eventlog.ColumnUpdated, col)
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// DeleteColumn removes an empty column. Archived tasks left in it move to the
// first remaining open column so no task is ever orphaned. At least one open
// column must remain.
func (s *Service) DeleteColumn(ctx context.Context, auth Auth, boardID, columnID string) error {
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		col, err := getColumn(w.tx, boardID, columnID)
		if err != nil {
			return nil, err
		}
		active, err := countActive(w.tx, columnID)
		if err != nil {
			return nil, err
		}
		if active > 0 {
			return nil, kanban.New(kanban.ColumnNotEmpty, "column %q still holds %d task(s)", col.Name, active)
		}
		cols, err := listColumns(w.tx, boardID)
		if err != nil {
			return nil, err
		}
		var remaining []models.Column
		for _, c := range cols {
			if c.ID != columnID {
				remaining = append(remaining, c)
			}
		}
		home := firstOpen(remaining)
		if home == nil {
			return nil, kanban.New(kanban.LastColumn, "column %q is the board's only open column", col.Name)
		}
		if err := rehomeArchived(w.tx, columnID, home.ID); err != nil {
			return nil, err
		}
		if err := w.tx.Delete(&models.Column{}, "id = ?", columnID).Error; err != nil {
			return nil, fmt.Errorf("board: delete column %s: %w", columnID, err)
		}
		if err := renumberColumns(w.tx, remaining); err != nil {
			return nil, err
		}
		if err := clearQuickRefs(w.tx, w.board, columnID); err != nil {
			return nil, err
		}
		return w.event(nil, eventlog.ColumnDeleted, col)
	})
	return err
}

// ArchiveColumn closes a column to new entries. Its tasks stay where they
// are, keep counting toward its limit and drop out of default task
// listings; they can still be moved out. The board's last open column
// cannot be archived.
func (s *Service) ArchiveColumn(ctx context.Context, auth Auth, boardID, columnID string) (*models.Column, error) {
	var col *models.Column
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		c, err := getColumn(w.tx, boardID, columnID)
		if err != nil {
			return nil, err
		}
		if c.Archived {
			return nil, kanban.New(kanban.AlreadyArchived, "column %q is already archived", c.Name)
		}
		cols, err := listColumns(w.tx, boardID)
		if err != nil {
			return nil, err
		}
		open := 0
		for _, other := range cols {
			if !other.Archived {
				open++
			}
		}
		if open <= 1 {
			return nil, kanban.New(kanban.LastColumn, "column %q is the board's only open column", c.Name)
		}
		if err := w.tx.Model(c).Updates(map[string]any{
			"archived":    true,
			"archived_at": w.now,
			"updated_at":  w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: archive column %s: %w", columnID, err)
		}
		c.Archived = true
		c.ArchivedAt = &w.now
		col = c
		return w.event(nil, eventlog.ColumnArchived, c)
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// UnarchiveColumn reopens an archived column.
func (s *Service) UnarchiveColumn(ctx context.Context, auth Auth, boardID, columnID string) (*models.Column, error) {
	var col *models.Column
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		c, err := getColumn(w.tx, boardID, columnID)
		if err != nil {
			return nil, err
		}
		if !c.Archived {
			return nil, kanban.New(kanban.NotArchived, "column %q is not archived", c.Name)
		}
		if err := w.tx.Model(c).Updates(map[string]any{
			"archived":    false,
			"archived_at": nil,
			"updated_at":  w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: unarchive column %s: %w", columnID, err)
		}
		c.Archived = false
		c.ArchivedAt = nil
		col = c
		return w.event(nil, eventlog.ColumnUnarchived, c)
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// ReorderColumns sets the board's column order. ids must name every column
// of the board exactly once, archived ones included.
func (s *Service) ReorderColumns(ctx context.Context, auth Auth, boardID string, ids []string) ([]models.Column, error) {
	var out []models.Column
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		cols, err := listColumns(w.tx, boardID)
		if err != nil {
			return nil, err
		}
		if len(ids) != len(cols) {
			return nil, kanban.New(kanban.InvalidColumnList, "got %d column ids, board has %d columns", len(ids), len(cols))
		}
		byID := make(map[string]models.Column, len(cols))
		for _, c := range cols {
			byID[c.ID] = c
		}
		ordered := make([]models.Column, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			c, ok := byID[id]
			if !ok || seen[id] {
				return nil, kanban.New(kanban.InvalidColumnList, "column %q is unknown or repeated", id)
			}
			seen[id] = true
			ordered = append(ordered, c)
		}
		if err := renumberColumns(w.tx, ordered); err != nil {
			return nil, err
		}
		out, err = listColumns(w.tx, boardID)
		if err != nil {
			return nil, err
		}
		return w.event(nil, eventlog.ColumnReordered, map[string]any{"order": ids})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// firstOpen returns the first non-archived column of cols, or nil.
func firstOpen(cols []models.Column) *models.Column {
	for i := range cols {
		if !cols[i].Archived {
			return &cols[i]
		}
	}
	return nil
}

func normalizeWIP(limit *int) *int {
	if limit == nil || *limit <= 0 {
		return nil
	}
	v := *limit
	return &v
}

func getColumn(db *gorm.DB, boardID, columnID string) (*models.Column, error) {
	var c models.Column
	if err := db.Where("id = ? AND board_id = ?", columnID, boardID).First(&c).Error; err != nil {
		if notFound(err) {
			return nil, kanban.New(kanban.ColumnNotFound, "%s", columnID)
		}
		return nil, fmt.Errorf("board: get column %s: %w", columnID, err)
	}
	return &c, nil
}

func listColumns(db *gorm.DB, boardID string) ([]models.Column, error) {
	var cols []models.Column
	if err := db.Where("board_id = ?", boardID).
		Order("position ASC, created_at ASC, id ASC").
		Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("board: list columns of %s: %w", boardID, err)
	}
	return cols, nil
}

// renumberColumns writes dense zero-based positions in slice order, touching
// only rows whose position changes.
func renumberColumns(tx *gorm.DB, ordered []models.Column) error {
	for i, c := range ordered {
		if c.Position == i {
			continue
		}
		if err := tx.Model(&models.Column{}).Where("id = ?", c.ID).Update("position", i).Error; err != nil {
			return fmt.Errorf("board: position column %s: %w", c.ID, err)
		}
	}
	return nil
}

// countActive counts the non-archived tasks in a column; this is the number
// a WIP limit bounds.
func countActive(tx *gorm.DB, columnID string) (int64, error) {
	var n int64
	if err := tx.Model(&models.Task{}).
		Where("column_id = ? AND archived_at IS NULL", columnID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("board: count tasks in %s: %w", columnID, err)
	}
	return n, nil
}

// checkEntry fails when one more active task may not enter col: the column
// is archived, or it is at its WIP limit.
func checkEntry(tx *gorm.DB, col *models.Column) error {
	if col.Archived {
		return kanban.New(kanban.ColumnArchived, "column %q is archived", col.Name)
	}
	if col.WIPLimit == nil {
		return nil
	}
	n, err := countActive(tx, col.ID)
	if err != nil {
		return err
	}
	if n >= int64(*col.WIPLimit) {
		return kanban.New(kanban.WipLimitExceeded, "column %q is at its WIP limit (%d/%d)", col.Name, n, *col.WIPLimit)
	}
	return nil
}

func rehomeArchived(tx *gorm.DB, fromColumnID, toColumnID string) error {
	var orphans []models.Task
	if err := tx.Where("column_id = ?", fromColumnID).Order("position ASC").Find(&orphans).Error; err != nil {
		return fmt.Errorf("board: list archived in %s: %w", fromColumnID, err)
	}
	if len(orphans) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Task{}).Where("column_id = ?", toColumnID).Count(&n).Error; err != nil {
		return fmt.Errorf("board: count tasks in %s: %w", toColumnID, err)
	}
	for i, t := range orphans {
		if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
			"column_id": toColumnID,
			"position":  int(n) + i,
		}).Error; err != nil {
			return fmt.Errorf("board: rehome task %s: %w", t.ID, err)
		}
	}
	return nil
}

func clearQuickRefs(tx *gorm.DB, b *models.Board, columnID string) error {
	updates := map[string]any{}
	if b.QuickDoneColumnID != nil && *b.QuickDoneColumnID == columnID {
		updates["quick_done_column_id"] = nil
	}
	if b.QuickReassignColumnID != nil && *b.QuickReassignColumnID == columnID {
		updates["quick_reassign_column_id"] = nil
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(b).Updates(updates).Error; err != nil {
		return fmt.Errorf("board: clear quick refs to %s: %w", columnID, err)
	}
	return nil
}
