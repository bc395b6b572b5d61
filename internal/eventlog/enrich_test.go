package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/corkboard/internal/models"
	"github.com/zulandar/corkboard/internal/testutil"
	"gorm.io/gorm"
)

func TestMentions(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{"hey @alice can you look", []string{"alice"}},
		{"@bob and @carol, and @bob again", []string{"bob", "carol"}},
		{"mail me at dev@example.com", nil},
		{"thanks @dave.", []string{"dave"}},
		{"@agent-7: done", []string{"agent-7"}},
		{"no mentions here", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mentions(tt.body), "body %q", tt.body)
	}
}

func appendEvent(t *testing.T, db *gorm.DB, boardID string, taskID *string, kind string, payload any) {
	t.Helper()
	ev, err := New(boardID, taskID, kind, "alice", payload)
	require.NoError(t, err)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return Append(tx, ev) }))
}

func TestEnrich_CreatedAttachesTask(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	task := models.Task{ID: "t1", BoardID: "b1", ColumnID: "c1", Title: "write docs"}
	require.NoError(t, db.Create(&task).Error)

	appendEvent(t, db, "b1", &task.ID, TaskCreated, nil)
	appendEvent(t, db, "b1", &task.ID, TaskMoved, map[string]string{"to": "c2"})

	events, err := Query(db, "b1", QueryOpts{})
	require.NoError(t, err)
	out, err := Enrich(db, events, EnrichOpts{})
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].Task)
	assert.Equal(t, "write docs", out[0].Task.Title)
	assert.Nil(t, out[1].Task, "moved events stay minimal")
}

func TestEnrich_DeletedTaskOmitted(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	gone := "t-gone"
	appendEvent(t, db, "b1", &gone, TaskCreated, nil)
	appendEvent(t, db, "b1", &gone, TaskCommented, CommentPayload{CommentID: 1, Body: "hi @bob"})

	events, err := Query(db, "b1", QueryOpts{})
	require.NoError(t, err)
	out, err := Enrich(db, events, EnrichOpts{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].Task)
	assert.Nil(t, out[1].Task)
	assert.Empty(t, out[1].RecentComments)
	assert.Equal(t, []string{"bob"}, out[1].Mentions)
}

func TestEnrich_CommentedAttachesRecentCommentsNewestFirst(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	task := models.Task{ID: "t1", BoardID: "b1", ColumnID: "c1", Title: "ship it"}
	require.NoError(t, db.Create(&task).Error)

	base := time.Now().Add(-time.Hour)
	for i, body := range []string{"first", "second", "third"} {
		c := models.Comment{TaskID: "t1", BoardID: "b1", Author: "alice", Body: body, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, db.Create(&c).Error)
	}
	appendEvent(t, db, "b1", &task.ID, TaskCommented, CommentPayload{CommentID: 3, Author: "alice", Body: "third @carol"})

	events, err := Query(db, "b1", QueryOpts{})
	require.NoError(t, err)
	out, err := Enrich(db, events, EnrichOpts{RecentComments: 2})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	require.NotNil(t, got.Task)
	require.Len(t, got.RecentComments, 2)
	assert.Equal(t, "third", got.RecentComments[0].Body)
	assert.Equal(t, "second", got.RecentComments[1].Body)
	assert.Equal(t, []string{"carol"}, got.Mentions)
}

func TestEnrich_BoardLevelEventsUntouched(t *testing.T) {
	db := testutil.OpenDB(t)
	newBoard(t, db, "b1")
	appendEvent(t, db, "b1", nil, BoardUpdated, map[string]string{"name": "new"})

	events, err := Query(db, "b1", QueryOpts{})
	require.NoError(t, err)
	out, err := Enrich(db, events, EnrichOpts{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, BoardUpdated, out[0].Kind)
	assert.Nil(t, out[0].Task)
	assert.JSONEq(t, `{"name":"new"}`, string(out[0].Payload))
}
