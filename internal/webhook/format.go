package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/corkboard/internal/eventlog"
)

// Sidebar colors by severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
)

// Envelope is the generic delivery body.
type Envelope struct {
	Event     string            `json:"event_kind"`
	BoardID   string            `json:"board_id"`
	Data      eventlog.Enriched `json:"data"`
	Timestamp string            `json:"timestamp"`
}

// NewEnvelope wraps an enriched event for delivery.
func NewEnvelope(ev eventlog.Enriched, now time.Time) Envelope {
	return Envelope{
		Event:     ev.Kind,
		BoardID:   ev.BoardID,
		Data:      ev,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

// summary is the chat-friendly rendering shared by the slack and discord
// formats.
type summary struct {
	Title  string
	Body   string
	Color  string
	Fields []field
}

type field struct {
	Name  string
	Value string
	Short bool
}

func kindColor(kind string) string {
	switch kind {
	case eventlog.TaskMoved, eventlog.TaskClaimed, eventlog.BoardCreated:
		return ColorSuccess
	case eventlog.TaskDeleted, eventlog.TaskArchived, eventlog.BoardArchived, eventlog.ColumnDeleted:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// summarize renders an event as a headline, body and fields.
func summarize(env Envelope) summary {
	ev := env.Data
	var payload map[string]any
	if len(ev.Payload) > 0 {
		_ = json.Unmarshal(ev.Payload, &payload)
	}

	subject := "Board"
	if ev.Task != nil {
		subject = fmt.Sprintf("Task %q", taskLabel(ev.Task.Title, ev.Task.Description))
	} else if title, ok := payload["title"].(string); ok && title != "" {
		subject = fmt.Sprintf("Task %q", title)
	} else if ev.TaskID != nil {
		subject = "Task " + *ev.TaskID
	}

	verb := ev.Kind
	if i := strings.IndexByte(verb, '.'); i >= 0 {
		verb = verb[i+1:]
	}
	s := summary{
		Title: fmt.Sprintf("%s %s by %s", subject, verb, ev.Actor),
		Color: kindColor(ev.Kind),
		Fields: []field{
			{Name: "Event", Value: ev.Kind, Short: true},
			{Name: "Seq", Value: fmt.Sprintf("%d", ev.Seq), Short: true},
		},
	}

	var body []string
	switch ev.Kind {
	case eventlog.TaskMoved:
		body = append(body, fmt.Sprintf("%v → %v", payload["from_column_id"], payload["to_column_id"]))
	case eventlog.TaskClaimed:
		body = append(body, fmt.Sprintf("Claimed by %v", payload["claimed_by"]))
	case eventlog.TaskCommented:
		if text, ok := payload["body"].(string); ok {
			body = append(body, text)
		}
		if len(ev.Mentions) > 0 {
			s.Fields = append(s.Fields, field{Name: "Mentions", Value: "@" + strings.Join(ev.Mentions, ", @")})
		}
	}
	if ev.Task != nil && ev.Task.Assignee != "" {
		s.Fields = append(s.Fields, field{Name: "Assignee", Value: ev.Task.Assignee, Short: true})
	}
	s.Body = strings.Join(body, "\n")
	return s
}

func taskLabel(title, description string) string {
	if title != "" {
		return title
	}
	if r := []rune(description); len(r) > 60 {
		return string(r[:60]) + "…"
	}
	return description
}

// slackBody builds an incoming-webhook message with one attachment.
func slackBody(env Envelope) ([]byte, error) {
	s := summarize(env)
	att := slackapi.Attachment{
		Fallback: s.Title,
		Title:    s.Title,
		Text:     s.Body,
		Color:    s.Color,
		Footer:   "corkboard · " + env.BoardID,
	}
	for _, f := range s.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	msg := slackapi.WebhookMessage{
		Text:        s.Title,
		Attachments: []slackapi.Attachment{att},
	}
	return json.Marshal(msg)
}

// discordBody builds a webhook execute payload with one embed.
func discordBody(env Envelope) ([]byte, error) {
	s := summarize(env)
	embed := &discordgo.MessageEmbed{
		Title:       s.Title,
		Description: s.Body,
		Color:       parseHexColor(s.Color),
		Timestamp:   env.Timestamp,
		Footer:      &discordgo.MessageEmbedFooter{Text: "corkboard · " + env.BoardID},
	}
	for _, f := range s.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	params := discordgo.WebhookParams{
		Username: "Corkboard",
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
	return json.Marshal(params)
}

// Body renders env in the given format.
func Body(format string, env Envelope) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatSlack:
		data, err = slackBody(env)
	case FormatDiscord:
		data, err = discordBody(env)
	default:
		data, err = json.Marshal(env)
	}
	if err != nil {
		return nil, fmt.Errorf("webhook: encode %s body: %w", format, err)
	}
	return data, nil
}

// parseHexColor converts "#36a64f" to the integer discord expects.
func parseHexColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}
