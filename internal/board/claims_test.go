package board

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
)

func TestClaim_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := Auth{Token: f.auth.Token, Actor: "alice"}
	bob := Auth{Token: f.auth.Token, Actor: "bob"}

	x, err := f.svc.CreateTask(ctx, alice, f.board.ID, CreateTaskOpts{Title: "X"})
	require.NoError(t, err)

	got, err := f.svc.ClaimTask(ctx, alice, f.board.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ClaimedBy)

	_, err = f.svc.ClaimTask(ctx, bob, f.board.ID, x.ID)
	assert.True(t, kanban.IsKind(err, kanban.AlreadyClaimed))
	held, err := f.svc.GetTask(ctx, f.board.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", held.ClaimedBy, "a failed claim must not change the holder")

	_, err = f.svc.ReleaseTask(ctx, alice, f.board.ID, x.ID)
	require.NoError(t, err)

	got, err = f.svc.ClaimTask(ctx, bob, f.board.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.ClaimedBy)
	assert.NotNil(t, got.ClaimedAt)
}

func TestClaim_SameHolderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	x, err := f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "X"})
	require.NoError(t, err)
	_, err = f.svc.ClaimTask(ctx, f.auth, f.board.ID, x.ID)
	require.NoError(t, err)
	_, err = f.svc.ClaimTask(ctx, f.auth, f.board.ID, x.ID)
	assert.True(t, kanban.IsKind(err, kanban.AlreadyClaimed))
}

func TestRelease_UnclaimedAppendsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	x, err := f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "X"})
	require.NoError(t, err)
	before, err := eventlog.LastSeq(f.svc.DB(), f.board.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.svc.ReleaseTask(ctx, f.auth, f.board.ID, x.ID)
		require.NoError(t, err)
	}
	after, err := eventlog.LastSeq(f.svc.DB(), f.board.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.svc.ReleaseTask(ctx, f.auth, f.board.ID, "missing")
	assert.True(t, kanban.IsKind(err, kanban.TaskNotFound))
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x, err := f.svc.CreateTask(ctx, f.auth, f.board.ID, CreateTaskOpts{Title: "X"})
	require.NoError(t, err)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for _, who := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimTask(ctx, Auth{Token: f.auth.Token, Actor: who}, f.board.ID, x.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case kanban.IsKind(err, kanban.AlreadyClaimed):
				conflicts.Add(1)
			default:
				t.Errorf("claim as %s: %v", who, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), conflicts.Load())
}
