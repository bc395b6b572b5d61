package board

import (
	"context"
	"errors"

	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxBatch is the hard cap on operations per batch.
const DefaultMaxBatch = 50

// Batch operation names.
const (
	OpMove   = "move"
	OpUpdate = "update"
	OpDelete = "delete"
)

// BatchOp is one item of a batch request.
type BatchOp struct {
	Op       string          `json:"op"`
	TaskID   string          `json:"task_id"`
	ColumnID string          `json:"column_id,omitempty"`
	Position *int            `json:"position,omitempty"`
	Update   *UpdateTaskOpts `json:"update,omitempty"`
}

// BatchResult reports the outcome of one batch item.
type BatchResult struct {
	Index   int          `json:"index"`
	OK      bool         `json:"ok"`
	Kind    kanban.Kind  `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Task    *models.Task `json:"task,omitempty"`
}

// Batch applies ops in order. Each op is its own transaction: one failing
// does not undo or stop the others, and results are reported per item.
// The token is checked once up front so a bad token fails the whole request.
func (s *Service) Batch(ctx context.Context, auth Auth, boardID string, ops []BatchOp) ([]BatchResult, error) {
	if len(ops) == 0 {
		return nil, kanban.New(kanban.EmptyBatch, "batch has no operations")
	}
	if len(ops) > s.maxBatch {
		return nil, kanban.New(kanban.BatchTooLarge, "batch has %d operations, max is %d", len(ops), s.maxBatch)
	}
	if err := s.Authorize(ctx, boardID, auth.Token); err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(ops))
	for i, op := range ops {
		task, err := s.applyBatchOp(ctx, auth, boardID, op)
		results[i] = BatchResult{Index: i, OK: err == nil, Task: task}
		if err != nil {
			results[i].Kind = kanban.KindOf(err)
			var ke *kanban.Error
			if errors.As(err, &ke) {
				results[i].Message = ke.Msg
			}
			if results[i].Kind == kanban.Internal {
				s.log.Error("batch op failed", zap.Int("index", i), zap.Error(err))
			}
		}
	}
	return results, nil
}

func (s *Service) applyBatchOp(ctx context.Context, auth Auth, boardID string, op BatchOp) (*models.Task, error) {
	if op.TaskID == "" {
		return nil, kanban.New(kanban.InvalidBatchOp, "task_id is required")
	}
	switch op.Op {
	case OpMove:
		return s.MoveTask(ctx, auth, boardID, op.TaskID, MoveOpts{ColumnID: op.ColumnID, Position: op.Position})
	case OpUpdate:
		if op.Update == nil {
			return nil, kanban.New(kanban.InvalidBatchOp, "update op needs an update body")
		}
		return s.UpdateTask(ctx, auth, boardID, op.TaskID, *op.Update)
	case OpDelete:
		return nil, s.DeleteTask(ctx, auth, boardID, op.TaskID)
	default:
		return nil, kanban.New(kanban.InvalidBatchOp, "unknown op %q", op.Op)
	}
}
