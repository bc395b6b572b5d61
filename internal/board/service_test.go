package board

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"github.com/zulandar/corkboard/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) notify(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	svc   *Service
	rec   *recorder
	board *models.Board
	auth  Auth
}

func (f *fixture) col(name string) string {
	for _, c := range f.board.Columns {
		if c.Name == name {
			return c.ID
		}
	}
	panic("no column " + name)
}

func newFixture(t *testing.T, cols ...ColumnOpts) *fixture {
	t.Helper()
	rec := &recorder{}
	svc := NewService(testutil.OpenDB(t), Options{Notify: []NotifyFunc{rec.notify}})
	created, err := svc.CreateBoard(context.Background(), CreateBoardOpts{Name: "ops", Columns: cols})
	require.NoError(t, err)
	return &fixture{
		svc:   svc,
		rec:   rec,
		board: created.Board,
		auth:  Auth{Token: created.Token, Actor: "alice"},
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateBoard_DefaultColumns(t *testing.T) {
	f := newFixture(t)
	require.Len(t, f.board.Columns, 3)
	assert.Equal(t, "To Do", f.board.Columns[0].Name)
	assert.Equal(t, "Done", f.board.Columns[2].Name)
	assert.Contains(t, f.auth.Token, "cb_")
	assert.NotEmpty(t, f.board.TokenHash)
	assert.Equal(t, []string{eventlog.BoardCreated}, f.rec.kinds())
}

func TestCreateBoard_EmptyName(t *testing.T) {
	svc := NewService(testutil.OpenDB(t), Options{})
	_, err := svc.CreateBoard(context.Background(), CreateBoardOpts{Name: "  "})
	assert.True(t, kanban.IsKind(err, kanban.EmptyName))
}

func TestWrite_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTask(ctx, Auth{Token: "cb_wrong"}, f.board.ID, CreateTaskOpts{Title: "x"})
	assert.True(t, kanban.IsKind(err, kanban.Unauthorized))

	_, err = f.svc.CreateTask(ctx, f.auth, "no-such-board", CreateTaskOpts{Title: "x"})
	assert.True(t, kanban.IsKind(err, kanban.Unauthorized), "missing board must look like a bad token, got %v", err)

	assert.True(t, kanban.IsKind(f.svc.Authorize(ctx, "no-such-board", f.auth.Token), kanban.Unauthorized))
	assert.NoError(t, f.svc.Authorize(ctx, f.board.ID, f.auth.Token))
}

func TestWrite_DisplayNamePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateTask(ctx, Auth{Token: f.auth.Token}, f.board.ID, CreateTaskOpts{Title: "anon ok"})
	require.NoError(t, err)
	assert.Equal(t, AnonymousActor, task.CreatedBy)

	_, err = f.svc.UpdateBoard(ctx, f.auth, f.board.ID, UpdateBoardOpts{RequireDisplayName: ptr(true)})
	require.NoError(t, err)

	for _, actor := range []string{"", "  ", "Anonymous"} {
		_, err = f.svc.CreateTask(ctx, Auth{Token: f.auth.Token, Actor: actor}, f.board.ID, CreateTaskOpts{Title: "x"})
		assert.True(t, kanban.IsKind(err, kanban.DisplayNameRequired), "actor %q", actor)
	}
	_, err = f.svc.AddComment(ctx, Auth{Token: f.auth.Token}, f.board.ID, task.ID, "hi")
	assert.True(t, kanban.IsKind(err, kanban.DisplayNameRequired))

	_, err = f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "named"})
	assert.NoError(t, err)
}

func TestArchivedBoard_RejectsWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ArchiveBoard(ctx, f.auth, f.board.ID))
	assert.True(t, kanban.IsKind(f.svc.ArchiveBoard(ctx, f.auth, f.board.ID), kanban.AlreadyArchived))

	_, err := f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "x"})
	assert.True(t, kanban.IsKind(err, kanban.BoardArchived))
	assert.True(t, kanban.IsKind(f.svc.AuthorizeWrite(ctx, f.board.ID, f.auth.Token), kanban.BoardArchived))
	assert.NoError(t, f.svc.Authorize(ctx, f.board.ID, f.auth.Token), "reads with the token still pass")
	assert.True(t, kanban.IsKind(f.svc.AuthorizeWrite(ctx, f.board.ID, "cb_wrong"), kanban.Unauthorized))

	boards, err := f.svc.ListBoards(ctx, ListBoardsOpts{})
	require.NoError(t, err)
	assert.Empty(t, boards)

	require.NoError(t, f.svc.UnarchiveBoard(ctx, f.auth, f.board.ID))
	assert.True(t, kanban.IsKind(f.svc.UnarchiveBoard(ctx, f.auth, f.board.ID), kanban.NotArchived))
	_, err = f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "x"})
	assert.NoError(t, err)
	assert.NoError(t, f.svc.AuthorizeWrite(ctx, f.board.ID, f.auth.Token))
}

func TestUpdateBoard_QuickColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateBoard(ctx, f.auth, f.board.ID, UpdateBoardOpts{QuickDoneColumnID: ptr("nope")})
	assert.True(t, kanban.IsKind(err, kanban.ColumnNotFound))

	done := f.col("Done")
	b, err := f.svc.UpdateBoard(ctx, f.auth, f.board.ID, UpdateBoardOpts{QuickDoneColumnID: &done})
	require.NoError(t, err)
	require.NotNil(t, b.QuickDoneColumnID)
	assert.Equal(t, done, *b.QuickDoneColumnID)

	b, err = f.svc.UpdateBoard(ctx, f.auth, f.board.ID, UpdateBoardOpts{QuickDoneColumnID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, b.QuickDoneColumnID)
}

func TestConcurrentWriters_SequenceIsDense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "t"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := eventlog.Query(f.svc.DB(), f.board.ID, eventlog.QueryOpts{Limit: 1000})
	require.NoError(t, err)
	require.Len(t, events, writers+1)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	tasks, err := f.svc.ListTasks(ctx, f.board.ID, TaskFilter{})
	require.NoError(t, err)
	positions := map[int]bool{}
	for _, task := range tasks {
		positions[task.Position] = true
	}
	assert.Len(t, positions, writers, "positions must be distinct")
}
