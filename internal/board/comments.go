package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
)

// AddComment attaches a comment to a task. The event payload carries the
// body so consumers can pick out @mentions.
func (s *Service) AddComment(ctx context.Context, auth Auth, boardID, taskID, body string) (*models.Comment, error) {
	var c *models.Comment
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		if strings.TrimSpace(body) == "" {
			return nil, kanban.New(kanban.EmptyComment, "comment body is required")
		}
		t, err := getTask(w.tx, w.board.ID, taskID)
		if err != nil {
			return nil, err
		}
		c = &models.Comment{
			TaskID:    t.ID,
			BoardID:   w.board.ID,
			Author:    w.actor,
			Body:      body,
			CreatedAt: w.now,
		}
		if err := w.tx.Create(c).Error; err != nil {
			return nil, fmt.Errorf("board: add comment to %s: %w", taskID, err)
		}
		return w.event(&t.ID, eventlog.TaskCommented, eventlog.CommentPayload{
			CommentID: c.ID,
			Author:    c.Author,
			Body:      c.Body,
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns a task's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, boardID, taskID string) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)
	if _, err := getBoard(db, boardID); err != nil {
		return nil, err
	}
	if _, err := getTask(db, boardID, taskID); err != nil {
		return nil, classify(err)
	}
	var out []models.Comment
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, classify(fmt.Errorf("board: list comments of %s: %w", taskID, err))
	}
	return out, nil
}
