// Package board is the board, column and task state machine. It is the only
// writer of those rows: every mutation runs as one transaction that checks
// the board's token and policies, applies the change, and appends exactly one
// event to the log. Committed events are then handed to the notifiers.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"github.com/zulandar/corkboard/internal/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnonymousActor is recorded when a write carries no display name.
const AnonymousActor = "anonymous"

// Auth is what a caller presents with a write: the board's capability token
// and an optional free-text display name.
type Auth struct {
	Token string
	Actor string
}

// NotifyFunc receives every committed event. It must not block.
type NotifyFunc func(models.Event)

// Options configures a Service.
type Options struct {
	Logger   *zap.Logger
	Notify   []NotifyFunc
	MaxBatch int
}

// Service runs board operations against a database.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	notify   []NotifyFunc
	maxBatch int
	now      func() time.Time
}

// NewService returns a Service backed by db.
func NewService(db *gorm.DB, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	return &Service{
		db:       db,
		log:      opts.Logger,
		notify:   opts.Notify,
		maxBatch: opts.MaxBatch,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying handle for read-side collaborators.
func (s *Service) DB() *gorm.DB {
	return s.db
}

// writeCtx is what a mutation sees inside its transaction.
type writeCtx struct {
	tx    *gorm.DB
	board *models.Board
	actor string
	now   time.Time
}

// event builds the event a mutation returns.
func (w *writeCtx) event(taskID *string, kind string, payload any) (*models.Event, error) {
	return eventlog.New(w.board.ID, taskID, kind, w.actor, payload)
}

type writeOpts struct {
	allowArchived bool
}

// mutation applies a change and returns the event recording it, or nil when
// nothing changed.
type mutation func(w *writeCtx) (*models.Event, error)

// write is the single path every mutating operation takes. The board row is
// locked for the whole transaction, which serializes writers per board and
// makes WIP, position and claim checks race-free.
func (s *Service) write(ctx context.Context, auth Auth, boardID string, opts writeOpts, fn mutation) (*models.Event, error) {
	var ev *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := lockBoard(tx, boardID)
		if err != nil {
			return err
		}
		if err := authorize(b, auth.Token); err != nil {
			return err
		}
		actor, err := checkActor(b, auth.Actor)
		if err != nil {
			return err
		}
		if b.Archived && !opts.allowArchived {
			return kanban.New(kanban.BoardArchived, "board %s is archived", b.ID)
		}

		w := &writeCtx{tx: tx, board: b, actor: actor, now: s.now()}
		ev, err = fn(w)
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}
		ev.CreatedAt = w.now
		return eventlog.Append(tx, ev)
	})
	if err != nil {
		return nil, classify(err)
	}
	if ev != nil {
		s.publish(*ev)
	}
	return ev, nil
}

func (s *Service) publish(ev models.Event) {
	for _, fn := range s.notify {
		fn(ev)
	}
}

// Authorize checks token against boardID without writing anything. A missing
// board and a wrong token are indistinguishable to the caller.
func (s *Service) Authorize(ctx context.Context, boardID, presented string) error {
	_, err := s.authorizeBoard(ctx, boardID, presented)
	return err
}

// AuthorizeWrite is Authorize plus the archived-board policy, for writes to
// board-owned state that does not go through the event log.
func (s *Service) AuthorizeWrite(ctx context.Context, boardID, presented string) error {
	b, err := s.authorizeBoard(ctx, boardID, presented)
	if err != nil {
		return err
	}
	if b.Archived {
		return kanban.New(kanban.BoardArchived, "board %s is archived", b.ID)
	}
	return nil
}

func (s *Service) authorizeBoard(ctx context.Context, boardID, presented string) (*models.Board, error) {
	var b models.Board
	err := s.db.WithContext(ctx).Where("id = ?", boardID).Limit(1).Find(&b).Error
	if err != nil {
		return nil, classify(fmt.Errorf("board: authorize %s: %w", boardID, err))
	}
	if b.ID == "" {
		token.Verify(nil, presented)
		return nil, kanban.E(kanban.Unauthorized)
	}
	if err := authorize(&b, presented); err != nil {
		return nil, err
	}
	return &b, nil
}

func lockBoard(tx *gorm.DB, boardID string) (*models.Board, error) {
	var b models.Board
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", boardID).Limit(1).Find(&b).Error
	if err != nil {
		return nil, fmt.Errorf("board: lock %s: %w", boardID, err)
	}
	if b.ID == "" {
		return nil, nil
	}
	return &b, nil
}

// authorize verifies presented against b. b may be nil (board not found);
// the same comparison work happens either way.
func authorize(b *models.Board, presented string) error {
	var stored *token.Hashed
	if b != nil {
		stored = &token.Hashed{Hash: b.TokenHash, Salt: b.TokenSalt}
	}
	if !token.Verify(stored, presented) {
		return kanban.E(kanban.Unauthorized)
	}
	return nil
}

// checkActor applies the board's display-name policy and returns the name to
// record.
func checkActor(b *models.Board, actor string) (string, error) {
	name := strings.TrimSpace(actor)
	placeholder := name == "" || strings.EqualFold(name, AnonymousActor)
	if b.RequireDisplayName && placeholder {
		return "", kanban.New(kanban.DisplayNameRequired, "board %s requires a display name", b.ID)
	}
	if placeholder {
		return AnonymousActor, nil
	}
	return name, nil
}

// classify passes classified errors through and wraps everything else as
// Internal, keeping the original in the chain for logs.
func classify(err error) error {
	var ke *kanban.Error
	if errors.As(err, &ke) {
		return err
	}
	return fmt.Errorf("%w: %w", kanban.E(kanban.Internal), err)
}

func newID() string {
	return uuid.NewString()
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
