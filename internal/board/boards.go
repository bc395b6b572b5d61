package board

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"github.com/zulandar/corkboard/internal/token"
	"gorm.io/gorm"
)

// DefaultColumns are created when a new board names none.
var DefaultColumns = []ColumnOpts{{Name: "To Do"}, {Name: "In Progress"}, {Name: "Done"}}

// CreateBoardOpts holds parameters for creating a board.
type CreateBoardOpts struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Listed             bool         `json:"listed"`
	RequireDisplayName bool         `json:"require_display_name"`
	Columns            []ColumnOpts `json:"columns"`
	Actor              string       `json:"-"`
}

// Created is the result of CreateBoard. Token is the only time the raw
// capability token is ever available.
type Created struct {
	Board *models.Board `json:"board"`
	Token string        `json:"token"`
}

// UpdateBoardOpts is a partial board update. An empty quick-action column ID
// clears that reference.
type UpdateBoardOpts struct {
	Name                  *string `json:"name"`
	Description           *string `json:"description"`
	Listed                *bool   `json:"listed"`
	RequireDisplayName    *bool   `json:"require_display_name"`
	QuickDoneColumnID     *string `json:"quick_done_column_id"`
	QuickReassignColumnID *string `json:"quick_reassign_column_id"`
}

// ListBoardsOpts pages the public board listing.
type ListBoardsOpts struct {
	Limit  int
	Offset int
}

// CreateBoard creates a board with its columns and returns its write token.
// This is the one unauthenticated write; callers rate limit it.
func (s *Service) CreateBoard(ctx context.Context, opts CreateBoardOpts) (*Created, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, kanban.New(kanban.EmptyName, "board name is required")
	}
	cols := opts.Columns
	if len(cols) == 0 {
		cols = DefaultColumns
	}
	for i, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return nil, kanban.New(kanban.EmptyName, "columns[%d].name is required", i)
		}
	}

	raw, hashed, err := token.Issue()
	if err != nil {
		return nil, classify(err)
	}

	now := s.now()
	b := &models.Board{
		ID:                 newID(),
		Name:               name,
		Description:        opts.Description,
		Listed:             opts.Listed,
		TokenHash:          hashed.Hash,
		TokenSalt:          hashed.Salt,
		RequireDisplayName: opts.RequireDisplayName,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	actor, err := checkActor(b, opts.Actor)
	if err != nil {
		return nil, err
	}

	columns := make([]models.Column, len(cols))
	for i, c := range cols {
		columns[i] = models.Column{
			ID:        newID(),
			BoardID:   b.ID,
			Name:      strings.TrimSpace(c.Name),
			Position:  i,
			WIPLimit:  normalizeWIP(c.WIPLimit),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	var ev *models.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Columns").Create(b).Error; err != nil {
			return fmt.Errorf("board: create: %w", err)
		}
		if err := tx.Create(&columns).Error; err != nil {
			return fmt.Errorf("board: create columns: %w", err)
		}
		if err := eventlog.InitSequence(tx, b.ID); err != nil {
			return err
		}
		ev, err = eventlog.New(b.ID, nil, eventlog.BoardCreated, actor, map[string]any{
			"name":    b.Name,
			"columns": columns,
		})
		if err != nil {
			return err
		}
		ev.CreatedAt = now
		return eventlog.Append(tx, ev)
	})
	if err != nil {
		return nil, classify(err)
	}
	s.publish(*ev)

	b.Columns = columns
	return &Created{Board: b, Token: raw}, nil
}

// GetBoard returns a board with its columns in position order.
func (s *Service) GetBoard(ctx context.Context, boardID string) (*models.Board, error) {
	db := s.db.WithContext(ctx)
	b, err := getBoard(db, boardID)
	if err != nil {
		return nil, err
	}
	cols, err := listColumns(db, boardID)
	if err != nil {
		return nil, classify(err)
	}
	b.Columns = cols
	return b, nil
}

// ListBoards returns listed, non-archived boards, newest first.
func (s *Service) ListBoards(ctx context.Context, opts ListBoardsOpts) ([]models.Board, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var boards []models.Board
	if err := s.db.WithContext(ctx).
		Where("listed = ? AND archived = ?", true, false).
		Order("created_at DESC, id ASC").
		Limit(limit).Offset(opts.Offset).
		Find(&boards).Error; err != nil {
		return nil, classify(fmt.Errorf("board: list: %w", err))
	}
	return boards, nil
}

// UpdateBoard applies a partial update to board settings.
func (s *Service) UpdateBoard(ctx context.Context, auth Auth, boardID string, opts UpdateBoardOpts) (*models.Board, error) {
	var out *models.Board
	_, err := s.write(ctx, auth, boardID, writeOpts{}, func(w *writeCtx) (*models.Event, error) {
		updates := map[string]any{}
		if opts.Name != nil {
			name := strings.TrimSpace(*opts.Name)
			if name == "" {
				return nil, kanban.New(kanban.EmptyName, "board name is required")
			}
			updates["name"] = name
		}
		if opts.Description != nil {
			updates["description"] = *opts.Description
		}
		if opts.Listed != nil {
			updates["listed"] = *opts.Listed
		}
		if opts.RequireDisplayName != nil {
			updates["require_display_name"] = *opts.RequireDisplayName
		}
		for field, ref := range map[string]*string{
			"quick_done_column_id":     opts.QuickDoneColumnID,
			"quick_reassign_column_id": opts.QuickReassignColumnID,
		} {
			if ref == nil {
				continue
			}
			if *ref == "" {
				updates[field] = nil
				continue
			}
			if _, err := getColumn(w.tx, w.board.ID, *ref); err != nil {
				return nil, err
			}
			updates[field] = *ref
		}
		if len(updates) == 0 {
			out = w.board
			return nil, nil
		}
		changes := maps.Clone(updates)
		updates["updated_at"] = w.now
		if err := w.tx.Model(w.board).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("board: update %s: %w", boardID, err)
		}
		fresh, err := getBoard(w.tx, boardID)
		if err != nil {
			return nil, err
		}
		out = fresh
		return w.event(nil, eventlog.BoardUpdated, map[string]any{"changes": changes})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ArchiveBoard soft-disables writes to a board.
func (s *Service) ArchiveBoard(ctx context.Context, auth Auth, boardID string) error {
	_, err := s.write(ctx, auth, boardID, writeOpts{allowArchived: true}, func(w *writeCtx) (*models.Event, error) {
		if w.board.Archived {
			return nil, kanban.New(kanban.AlreadyArchived, "board %s is already archived", boardID)
		}
		if err := w.tx.Model(w.board).Updates(map[string]any{
			"archived":    true,
			"archived_at": w.now,
			"updated_at":  w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: archive %s: %w", boardID, err)
		}
		return w.event(nil, eventlog.BoardArchived, nil)
	})
	return err
}

// UnarchiveBoard re-enables writes to an archived board.
func (s *Service) UnarchiveBoard(ctx context.Context, auth Auth, boardID string) error {
	_, err := s.write(ctx, auth, boardID, writeOpts{allowArchived: true}, func(w *writeCtx) (*models.Event, error) {
		if !w.board.Archived {
			return nil, kanban.New(kanban.NotArchived, "board %s is not archived", boardID)
		}
		if err := w.tx.Model(w.board).Updates(map[string]any{
			"archived":    false,
			"archived_at": nil,
			"updated_at":  w.now,
		}).Error; err != nil {
			return nil, fmt.Errorf("board: unarchive %s: %w", boardID, err)
		}
		return w.event(nil, eventlog.BoardUnarchived, nil)
	})
	return err
}

func getBoard(db *gorm.DB, boardID string) (*models.Board, error) {
	var b models.Board
	if err := db.Where("id = ?", boardID).First(&b).Error; err != nil {
		if notFound(err) {
			return nil, kanban.New(kanban.BoardNotFound, "%s", boardID)
		}
		return nil, classify(fmt.Errorf("board: get %s: %w", boardID, err))
	}
	return &b, nil
}
