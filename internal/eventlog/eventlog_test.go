package eventlog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"github.com/zulandar/corkboard/internal/testutil"
	"gorm.io/gorm"
)

func newBoard(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return InitSequence(tx, id)
	}))
}

func appendN(t *testing.T, db *gorm.DB, boardID, kind string, n int) []int64 {
	t.Helper()
	var seqs []int64
	for i := 0; i < n; i++ {
		ev, err := New(boardID, nil, kind, "alice", map[string]int{"i": i})
		require.NoError(t, err)
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return Append(tx, ev)
		}))
		seqs = append(seqs, ev.Seq)
	}
	return seqs
}

func TestAppend_SequenceStartsAtOne(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")

	seqs := appendN(t, db, "b1", BoardUpdated, 5)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seqs)

	last, err := LastSeq(db, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)
}

func TestAppend_PerBoardCounters(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	newBoard(t, db, "b2")

	appendN(t, db, "b1", BoardUpdated, 3)
	seqs := appendN(t, db, "b2", BoardUpdated, 2)
	assert.Equal(t, []int64{1, 2}, seqs, "b2 must not share b1's counter")
}

func TestAppend_UnknownBoard(t *testing.T) {
	db := testutil.OpenDB(t)

	ev, err := New("ghost", nil, BoardUpdated, "", nil)
	require.NoError(t, err)
	err = db.Transaction(func(tx *gorm.DB) error { return Append(tx, ev) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sequence")
}

func TestAppend_UnknownKind(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")

	ev := &models.Event{BoardID: "b1", Kind: "task.exploded"}
	err := db.Transaction(func(tx *gorm.DB) error { return Append(tx, ev) })
	assert.True(t, kanban.IsKind(err, kanban.InvalidEventType), "err = %v", err)
}

func TestAppend_RollbackDoesNotConsumeSequence(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	appendN(t, db, "b1", BoardUpdated, 2)

	ev, err := New("b1", nil, BoardUpdated, "", nil)
	require.NoError(t, err)
	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, Append(tx, ev))
		return assert.AnError
	})

	seqs := appendN(t, db, "b1", BoardUpdated, 1)
	assert.Equal(t, []int64{3}, seqs)
}

func TestAppend_ConcurrentWritersNoGapsNoRepeats(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")

	const writers, each = 8, 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen []int64
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				ev, err := New("b1", nil, TaskUpdated, "bot", nil)
				if err != nil {
					t.Error(err)
					return
				}
				if err := db.Transaction(func(tx *gorm.DB) error { return Append(tx, ev) }); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen = append(seen, ev.Seq)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	events, err := Query(db, "b1", QueryOpts{Limit: MaxLimit})
	require.NoError(t, err)
	require.Len(t, events, writers*each)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Len(t, seen, writers*each)
}

func TestQuery_AfterCursor(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "z")
	appendN(t, db, "z", TaskUpdated, 5)

	events, err := Query(db, "z", QueryOpts{After: 3})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].Seq)
	assert.Equal(t, int64(5), events[1].Seq)
}

func TestQuery_Recent(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	appendN(t, db, "b1", TaskUpdated, 5)

	events, err := Query(db, "b1", QueryOpts{Recent: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(5), events[0].Seq)
	assert.Equal(t, int64(4), events[1].Seq)
}

func TestQuery_Filters(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	appendN(t, db, "b1", TaskUpdated, 2)
	appendN(t, db, "b1", TaskMoved, 1)

	taskID := "t1"
	ev, err := New("b1", &taskID, TaskClaimed, "bob", nil)
	require.NoError(t, err)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return Append(tx, ev) }))

	moved, err := Query(db, "b1", QueryOpts{Kinds: []string{TaskMoved}})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, int64(3), moved[0].Seq)

	byTask, err := Query(db, "b1", QueryOpts{TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, TaskClaimed, byTask[0].Kind)

	future := time.Now().Add(time.Hour)
	none, err := Query(db, "b1", QueryOpts{Since: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQuery_InvalidKind(t *testing.T) {
	db := testutil.OpenDB(t)
	_, err := Query(db, "b1", QueryOpts{Kinds: []string{"nope"}})
	assert.True(t, kanban.IsKind(err, kanban.InvalidEventType))
}

func TestQuery_LimitClamped(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	appendN(t, db, "b1", TaskUpdated, 3)

	events, err := Query(db, "b1", QueryOpts{Limit: MaxLimit * 10})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
