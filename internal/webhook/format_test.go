package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/models"
)

func commentedEnvelope(t *testing.T) Envelope {
	t.Helper()
	taskID := "t1"
	ev, err := eventlog.New("b1", &taskID, eventlog.TaskCommented, "alice", eventlog.CommentPayload{
		CommentID: 3,
		Author:    "alice",
		Body:      "over to you @bob",
	})
	require.NoError(t, err)
	ev.Seq = 12
	return NewEnvelope(eventlog.Enriched{
		Event:    *ev,
		Task:     &models.Task{ID: taskID, Title: "Fix login", Assignee: "bob"},
		Mentions: []string{"bob"},
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestBody_Slack(t *testing.T) {
	data, err := Body(FormatSlack, commentedEnvelope(t))
	require.NoError(t, err)

	var msg slackapi.WebhookMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, `Task "Fix login" commented by alice`, att.Title)
	assert.Equal(t, "over to you @bob", att.Text)
	assert.Equal(t, ColorInfo, att.Color)

	var names []string
	for _, f := range att.Fields {
		names = append(names, f.Title)
	}
	assert.Equal(t, []string{"Event", "Seq", "Mentions", "Assignee"}, names)
}

func TestBody_Discord(t *testing.T) {
	data, err := Body(FormatDiscord, commentedEnvelope(t))
	require.NoError(t, err)

	var params discordgo.WebhookParams
	require.NoError(t, json.Unmarshal(data, &params))
	require.Len(t, params.Embeds, 1)
	embed := params.Embeds[0]
	assert.Equal(t, `Task "Fix login" commented by alice`, embed.Title)
	assert.Equal(t, 0x2196f3, embed.Color)
	assert.Equal(t, "2026-03-01T12:00:00Z", embed.Timestamp)
}

func TestBody_Generic(t *testing.T) {
	data, err := Body(FormatGeneric, commentedEnvelope(t))
	require.NoError(t, err)

	var env struct {
		Event     string `json:"event_kind"`
		Timestamp string `json:"timestamp"`
		Data      struct {
			Seq      int64    `json:"seq"`
			Mentions []string `json:"mentions"`
			Task     struct {
				Title string `json:"title"`
			} `json:"task"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, eventlog.TaskCommented, env.Event)
	assert.Equal(t, int64(12), env.Data.Seq)
	assert.Equal(t, []string{"bob"}, env.Data.Mentions)
	assert.Equal(t, "Fix login", env.Data.Task.Title)
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, 0x36a64f, parseHexColor(ColorSuccess))
	assert.Equal(t, 0xFF9800, parseHexColor("FF9800"))
}
