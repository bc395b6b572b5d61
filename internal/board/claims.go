package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
)

// ClaimTask marks the caller as the task's active holder. It is a
// compare-and-set: a held task fails with AlreadyClaimed, even for the
// current holder, and the existing claim is left untouched.
func (s *Service) ClaimTask(ctx context.Context, auth Auth, boardID, taskID string) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, err := lockTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		if t.ClaimedBy != "" {
			return nil, kanban.New(kanban.AlreadyClaimed, "task %s is claimed by %s", taskID, t.ClaimedBy)
		}
		res := w.tx.Model(&models.Task{}).
			Where("id = ? AND (claimed_by = '' OR claimed_by IS NULL)", t.ID).
			Updates(map[string]any{
				"claimed_by": w.actor,
				"claimed_at": w.now,
				"updated_at": w.now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("board: claim task %s: %w", taskID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, kanban.New(kanban.AlreadyClaimed, "task %s was claimed concurrently", taskID)
		}
		t.ClaimedBy = w.actor
		t.ClaimedAt = &w.now
		task = t
		return w.event(&t.ID, eventlog.TaskClaimed, map[string]any{"claimed_by": w.actor})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ReleaseTask clears a task's claim. Releasing an unclaimed task succeeds
// and records nothing, so retries are safe.
func (s *Service) ReleaseTask(ctx context.Context, auth Auth, boardID, taskID string) (*models.Task, error) {
	var task *models.Task
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		t, err := lockTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		task = t
		if strings.TrimSpace(t.ClaimedBy) == "" {
			return nil, nil
		}
		prev := t.ClaimedBy
		if err := w.tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
			"claimed_by": "",
			"claimed_at": nil,
			"updated_at": w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: release task %s: %w", taskID, err)
		}
		t.ClaimedBy = ""
		t.ClaimedAt = nil
		return w.event(&t.ID, eventlog.TaskReleased, map[string]any{"released_from": prev})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
