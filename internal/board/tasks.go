package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Priority bounds. Out-of-range priorities are clamped.
const (
	MinPriority     = 0
	MaxPriority     = 3
	DefaultPriority = 1
)

// CreateTaskOpts holds parameters for creating a task. An empty ColumnID
// places the task in the board's first column.
type CreateTaskOpts struct {
	ColumnID    string         `json:"column_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    *int           `json:"priority"`
	Assignee    string         `json:"assignee"`
	Labels      []string       `json:"labels"`
	Metadata    map[string]any `json:"metadata"`
	DueAt       *time.Time     `json:"due_at"`
}

// UpdateTaskOpts is a partial task update; nil fields are left alone.
// ClearDueAt removes the due date.
type UpdateTaskOpts struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Priority    *int           `json:"priority,omitempty"`
	Assignee    *string        `json:"assignee,omitempty"`
	Labels      *[]string      `json:"labels,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DueAt       *time.Time     `json:"due_at,omitempty"`
	ClearDueAt  bool           `json:"clear_due_at,omitempty"`
}

// MoveOpts selects a destination. An empty ColumnID keeps the current
// column; a nil Position appends to the end.
type MoveOpts struct {
	ColumnID string `json:"column_id"`
	Position *int   `json:"position"`
}

// TaskFilter narrows ListTasks and SearchTasks.
type TaskFilter struct {
	ColumnID        string
	Assignee        string
	ClaimedBy       string
	Label           string
	Priority        *int
	IncludeArchived bool
}

// CreateTask adds a task to the end of a column, subject to its WIP limit.
func (s *Service) CreateTask(ctx context.Context, auth Auth, boardID string, opts CreateTaskOpts) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		if strings.TrimSpace(opts.Title) == "" && strings.TrimSpace(opts.Description) == "" {
			return nil, kanban.New(kanban.EmptyTask, "a task needs a title or a description")
		}
		col, err := resolveColumn(w.tx, boardID, opts.ColumnID)
		if err != nil {
			return nil, err
		}
		if err := checkEntry(w.tx, col); err != nil {
			return nil, err
		}
		var n int64
		if err := w.tx.Model(&models.Task{}).Where("column_id = ?", col.ID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("board: count tasks in %s: %w", col.ID, err)
		}
		meta, err := marshalMetadata(opts.Metadata)
		if err != nil {
			return nil, err
		}
		priority := DefaultPriority
		if opts.Priority != nil {
			priority = clampPriority(*opts.Priority)
		}

		task = &models.Task{
			ID:          newID(),
			BoardID:     boardID,
			ColumnID:    col.ID,
			Title:       strings.TrimSpace(opts.Title),
			Description: opts.Description,
			Priority:    priority,
			Position:    int(n),
			Assignee:    strings.TrimSpace(opts.Assignee),
			Labels:      datatypes.JSONSlice[string](NormalizeLabels(opts.Labels)),
			Metadata:    meta,
			DueAt:       utcPtr(opts.DueAt),
			CreatedBy:   w.actor,
			CreatedAt:   w.now,
			UpdatedAt:   w.now,
		}
		if isQuickDone(w.board, col.ID) {
			task.CompletedAt = &w.now
		}
		if err := w.tx.Create(task).Error; err != nil {
			return nil, fmt.Errorf("board: create task: %w", err)
		}
		return w.event(&task.ID, eventlog.TaskCreated, map[string]any{
			"column_id": col.ID,
			"title":     task.Title,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns one task of a board.
func (s *Service) GetTask(ctx context.Context, boardID, taskID string) (*models.Task, error) {
	db := s.db.WithContext(ctx)
	if _, err := getBoard(db, boardID); err != nil {
		return nil, err
	}
	t, err := getTask(db, boardID, taskID)
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

// ListTasks returns a board's tasks in column order, then position.
func (s *Service) ListTasks(ctx context.Context, boardID string, f TaskFilter) ([]models.Task, error) {
	return s.findTasks(ctx, boardID, f, nil)
}

// SearchTasks matches query case-insensitively against title and
// description.
func (s *Service) SearchTasks(ctx context.Context, boardID, query string, f TaskFilter) ([]models.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, kanban.New(kanban.EmptyQuery, "search query is required")
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.findTasks(ctx, boardID, f, func(q *gorm.DB) *gorm.DB {
		return q.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
	})
}

func (s *Service) findTasks(ctx context.Context, boardID string, f TaskFilter, scope func(*gorm.DB) *gorm.DB) ([]models.Task, error) {
	db := s.db.WithContext(ctx)
	if _, err := getBoard(db, boardID); err != nil {
		return nil, err
	}
	cols, err := listColumns(db, boardID)
	if err != nil {
		return nil, classify(err)
	}

	q := db.Model(&models.Task{}).Where("board_id = ?", boardID)
	if f.ColumnID != "" {
		q = q.Where("column_id = ?", f.ColumnID)
	}
	if f.Assignee != "" {
		q = q.Where("assignee = ?", f.Assignee)
	}
	if f.ClaimedBy != "" {
		q = q.Where("claimed_by = ?", f.ClaimedBy)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	if !f.IncludeArchived {
		q = q.Where("archived_at IS NULL")
		if f.ColumnID == "" {
			closed := db.Model(&models.Column{}).Select("id").Where("board_id = ? AND archived = ?", boardID, true)
			q = q.Where("column_id NOT IN (?)", closed)
		}
	}
	if scope != nil {
		q = scope(q)
	}

	var tasks []models.Task
	if err := q.Order("position ASC, created_at ASC").Find(&tasks).Error; err != nil {
		return nil, classify(fmt.Errorf("board: list tasks of %s: %w", boardID, err))
	}

	if f.Label != "" {
		want := NormalizeLabel(f.Label)
		filtered := tasks[:0]
		for _, t := range tasks {
			for _, l := range t.Labels {
				if l == want {
					filtered = append(filtered, t)
					break
				}
			}
		}
		tasks = filtered
	}

	order := make(map[string]int, len(cols))
	for _, c := range cols {
		order[c.ID] = c.Position
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return order[tasks[i].ColumnID] < order[tasks[j].ColumnID]
	})
	return tasks, nil
}

// UpdateTask applies a partial update. The title/description invariant is
// checked against the result, and the column never changes here.
func (s *Service) UpdateTask(ctx context.Context, auth Auth, boardID, taskID string, opts UpdateTaskOpts) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, ev, err := applyUpdate(w, taskID, opts)
		task = t
		return ev, err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func applyUpdate(w *writeCtx, taskID string, opts UpdateTaskOpts) (*models.Task, *models.Event, error) {
	t, err := lockTask(w.tx, w.board.ID, taskID)
	if err != nil {
		return nil, nil, err
	}

	title, desc := t.Title, t.Description
	updates := map[string]any{}
	if opts.Title != nil {
		title = strings.TrimSpace(*opts.Title)
		updates["title"] = title
	}
	if opts.Description != nil {
		desc = *opts.Description
		updates["description"] = desc
	}
	if strings.TrimSpace(title) == "" && strings.TrimSpace(desc) == "" {
		return nil, nil, kanban.New(kanban.EmptyTask, "a task needs a title or a description")
	}
	if opts.Priority != nil {
		updates["priority"] = clampPriority(*opts.Priority)
	}
	if opts.Assignee != nil {
		updates["assignee"] = strings.TrimSpace(*opts.Assignee)
	}
	if opts.Labels != nil {
		updates["labels"] = datatypes.JSONSlice[string](NormalizeLabels(*opts.Labels))
	}
	if opts.Metadata != nil {
		meta, err := marshalMetadata(opts.Metadata)
		if err != nil {
			return nil, nil, err
		}
		updates["metadata"] = meta
	}
	if opts.ClearDueAt {
		updates["due_at"] = nil
	} else if opts.DueAt != nil {
		updates["due_at"] = utcPtr(opts.DueAt)
	}
	if len(updates) == 0 {
		return t, nil, nil
	}

	changes := make(map[string]any, len(updates))
	for k, v := range updates {
		changes[k] = v
	}
	updates["updated_at"] = w.now
	if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
		return nil, nil, fmt.Errorf("board: update task %s: %w", taskID, err)
	}
	fresh, err := getTask(w.tx, w.board.ID, taskID)
	if err != nil {
		return nil, nil, err
	}
	ev, err := w.event(&t.ID, eventlog.TaskUpdated, map[string]any{"changes": changes})
	return fresh, ev, err
}

// MoveTask changes a task's column and/or position in one step. The WIP
// limit is checked only when the column changes; a rejected move leaves the
// task exactly where it was.
func (s *Service) MoveTask(ctx context.Context, auth Auth, boardID, taskID string, opts MoveOpts) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, ev, err := applyMove(w, taskID, opts)
		task = t
		return ev, err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func applyMove(w *writeCtx, taskID string, opts MoveOpts) (*models.Task, *models.Event, error) {
	t, err := lockTask(w.tx, w.board.ID, taskID)
	if err != nil {
		return nil, nil, err
	}
	destID := opts.ColumnID
	if destID == "" {
		destID = t.ColumnID
	}
	dest, err := getColumn(w.tx, w.board.ID, destID)
	if err != nil {
		return nil, nil, err
	}
	crossing := dest.ID != t.ColumnID
	if crossing && dest.Archived {
		return nil, nil, kanban.New(kanban.ColumnArchived, "column %q is archived", dest.Name)
	}
	if crossing && !t.IsArchived() {
		if err := checkEntry(w.tx, dest); err != nil {
			return nil, nil, err
		}
	}

	from := struct {
		Column   string
		Position int
	}{t.ColumnID, t.Position}

	destTasks, err := columnTasks(w.tx, dest.ID)
	if err != nil {
		return nil, nil, err
	}
	// Take the task out of its current slot.
	without := make([]models.Task, 0, len(destTasks))
	for _, dt := range destTasks {
		if dt.ID != t.ID {
			without = append(without, dt)
		}
	}
	pos := len(without)
	if opts.Position != nil {
		pos = min(max(*opts.Position, 0), len(without))
	}
	ordered := make([]models.Task, 0, len(without)+1)
	ordered = append(ordered, without[:pos]...)
	ordered = append(ordered, *t)
	ordered = append(ordered, without[pos:]...)

	if crossing {
		updates := map[string]any{"column_id": dest.ID, "updated_at": w.now}
		switch {
		case isQuickDone(w.board, dest.ID):
			updates["completed_at"] = w.now
		case isQuickDone(w.board, t.ColumnID):
			updates["completed_at"] = nil
		}
		if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
			return nil, nil, fmt.Errorf("board: move task %s: %w", taskID, err)
		}
		for i := range ordered {
			if ordered[i].ID == t.ID {
				ordered[i].ColumnID = dest.ID
				ordered[i].Position = -1 // force a position write
			}
		}
		source, err := columnTasks(w.tx, from.Column)
		if err != nil {
			return nil, nil, err
		}
		if err := renumberTasks(w.tx, source); err != nil {
			return nil, nil, err
		}
	}
	if err := renumberTasks(w.tx, ordered); err != nil {
		return nil, nil, err
	}

	fresh, err := getTask(w.tx, w.board.ID, taskID)
	if err != nil {
		return nil, nil, err
	}
	if !crossing && fresh.Position == from.Position {
		return fresh, nil, nil
	}
	ev, err := w.event(&t.ID, eventlog.TaskMoved, map[string]any{
		"from_column_id": from.Column,
		"to_column_id":   fresh.ColumnID,
		"from_position":  from.Position,
		"to_position":    fresh.Position,
	})
	return fresh, ev, err
}

// QuickDone moves a task to the board's quick "done" column, or to the last
// open column when none is configured.
func (s *Service) QuickDone(ctx context.Context, auth Auth, boardID, taskID string) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		dest := ""
		if w.board.QuickDoneColumnID != nil {
			dest = *w.board.QuickDoneColumnID
		} else {
			cols, err := listColumns(w.tx, w.board.ID)
			if err != nil {
				return nil, err
			}
			for _, c := range cols {
				if !c.Archived {
					dest = c.ID
				}
			}
		}
		t, ev, err := applyMove(w, taskID, MoveOpts{ColumnID: dest})
		if err != nil {
			return nil, err
		}
		task = t
		if t.CompletedAt != nil {
			return ev, nil
		}
		if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Update("completed_at", w.now).Error; err != nil {
			return nil, fmt.Errorf("board: complete task %s: %w", taskID, err)
		}
		t.CompletedAt = &w.now
		if ev != nil {
			return ev, nil
		}
		return w.event(&t.ID, eventlog.TaskUpdated, map[string]any{
			"changes": map[string]any{"completed_at": w.now},
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// QuickReassign hands a task to assignee, releasing any claim, and moves it
// to the board's quick reassign column when one is configured.
func (s *Service) QuickReassign(ctx context.Context, auth Auth, boardID, taskID, assignee string) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, err := lockTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		if w.board.QuickReassignColumnID != nil && *w.board.QuickReassignColumnID != t.ColumnID {
			if _, _, err := applyMove(w, taskID, MoveOpts{ColumnID: *w.board.QuickReassignColumnID}); err != nil {
				return nil, err
			}
		}
		assignee = strings.TrimSpace(assignee)
		if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
			"assignee":   assignee,
			"claimed_by": "",
			"claimed_at": nil,
			"updated_at": w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: reassign task %s: %w", taskID, err)
		}
		task, err = getTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		return w.event(&t.ID, eventlog.TaskUpdated, map[string]any{
			"changes": map[string]any{
				"assignee":   assignee,
				"claimed_by": "",
				"column_id":  task.ColumnID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ArchiveTask hides a task and stops it counting toward its column's limit.
func (s *Service) ArchiveTask(ctx context.Context, auth Auth, boardID, taskID string) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, err := lockTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		if t.IsArchived() {
			return nil, kanban.New(kanban.AlreadyArchived, "task %s is already archived", taskID)
		}
		if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
			"archived_at": w.now,
			"updated_at":  w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: archive task %s: %w", taskID, err)
		}
		t.ArchivedAt = &w.now
		task = t
		return w.event(&t.ID, eventlog.TaskArchived, map[string]any{"column_id": t.ColumnID})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UnarchiveTask restores a task. Because it starts counting toward the WIP
// limit again, the column must have room.
func (s *Service) UnarchiveTask(ctx context.Context, auth Auth, boardID, taskID string) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, err := lockTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		if !t.IsArchived() {
			return nil, kanban.New(kanban.NotArchived, "task %s is not archived", taskID)
		}
		col, err := getColumn(w.tx, w.board.ID, t.ColumnID)
		if err != nil {
			return nil, err
		}
		if err := checkEntry(w.tx, col); err != nil {
			return nil, err
		}
		if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
			"archived_at": nil,
			"updated_at":  w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: unarchive task %s: %w", taskID, err)
		}
		t.ArchivedAt = nil
		task = t
		return w.event(&t.ID, eventlog.TaskUnarchived, map[string]any{"column_id": t.ColumnID})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task and its comments. Its events stay in the log.
func (s *Service) DeleteTask(ctx context.Context, auth Auth, boardID, taskID string) error {
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		return applyDelete(w, taskID)
	})
	return err
}

func applyDelete(w *writeCtx, taskID string) (*models.Event, error) {
	t, err := lockTask(w.tx, w.board.ID, taskID)
	if err != nil {
		return nil, err
	}
	if err := w.tx.Where("task_id = ?", t.ID).Delete(&models.Comment{}).Error; err != nil {
		return nil, fmt.Errorf("board: delete comments of %s: %w", taskID, err)
	}
	if err := w.tx.Delete(&models.Task{}, "id = ?", t.ID).Error; err != nil {
		return nil, fmt.Errorf("board: delete task %s: %w", taskID, err)
	}
	rest, err := columnTasks(w.tx, t.ColumnID)
	if err != nil {
		return nil, err
	}
	if err := renumberTasks(w.tx, rest); err != nil {
		return nil, err
	}
	return w.event(&t.ID, eventlog.TaskDeleted, map[string]any{
		"column_id": t.ColumnID,
		"title":     t.Title,
	})
}

func resolveColumn(tx *gorm.DB, boardID, columnID string) (*models.Column, error) {
	if columnID != "" {
		return getColumn(tx, boardID, columnID)
	}
	cols, err := listColumns(tx, boardID)
	if err != nil {
		return nil, err
	}
	col := firstOpen(cols)
	if col == nil {
		return nil, kanban.New(kanban.ColumnNotFound, "board %s has no open columns", boardID)
	}
	return col, nil
}

func getTask(db *gorm.DB, boardID, taskID string) (*models.Task, error) {
	var t models.Task
	if err := db.Where("id = ? AND board_id = ?", taskID, boardID).First(&t).Error; err != nil {
		if notFound(err) {
			return nil, kanban.New(kanban.TaskNotFound, "%s", taskID)
		}
		return nil, fmt.Errorf("board: get task %s: %w", taskID, err)
	}
	return &t, nil
}

// lockTask reads a task for update. The board lock already serializes
// writers; the row lock keeps the intent explicit for pooled backends.
func lockTask(tx *gorm.DB, boardID, taskID string) (*models.Task, error) {
	return getTask(tx.Clauses(clause.Locking{Strength: "UPDATE"}), boardID, taskID)
}

func columnTasks(tx *gorm.DB, columnID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := tx.Where("column_id = ?", columnID).
		Order("position ASC, created_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("board: list tasks in %s: %w", columnID, err)
	}
	return tasks, nil
}

// renumberTasks writes dense zero-based positions in slice order.
func renumberTasks(tx *gorm.DB, ordered []models.Task) error {
	for i, t := range ordered {
		if t.Position == i {
			continue
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).Update("position", i).Error; err != nil {
			return fmt.Errorf("board: position task %s: %w", t.ID, err)
		}
	}
	return nil
}

func isQuickDone(b *models.Board, columnID string) bool {
	return b.QuickDoneColumnID != nil && *b.QuickDoneColumnID == columnID
}

func clampPriority(p int) int {
	return min(max(p, MinPriority), MaxPriority)
}

func marshalMetadata(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("board: marshal metadata: %w", err)
	}
	return datatypes.JSON(data), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
