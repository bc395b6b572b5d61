package eventlog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zulandar/corkboard/internal/models"
	"gorm.io/gorm"
)

// DefaultRecentComments is how many comments a task.commented event carries.
const DefaultRecentComments = 5

// Enriched is an event as handed to consumers. Only task.created and
// task.commented events carry snapshots; everything else stays minimal.
type Enriched struct {
	models.Event
	Task           *models.Task     `json:"task,omitempty"`
	RecentComments []models.Comment `json:"recent_comments,omitempty"`
	Mentions       []string         `json:"mentions,omitempty"`
}

// EnrichOpts controls read-time enrichment.
type EnrichOpts struct {
	RecentComments int
}

// CommentPayload is the payload of a task.commented event.
type CommentPayload struct {
	CommentID uint   `json:"comment_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
}

var mentionRe = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_][A-Za-z0-9_.\-]*)`)

// Mentions returns the distinct @names in body, in order of first use.
func Mentions(body string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range mentionRe.FindAllStringSubmatch(body, -1) {
		name := strings.TrimRight(m[1], ".-")
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, name)
	}
	return out
}

// Enrich attaches read-time snapshots to events. Tasks deleted since the
// event was appended are skipped, not reported.
func Enrich(db *gorm.DB, events []models.Event, opts EnrichOpts) ([]Enriched, error) {
	if opts.RecentComments <= 0 {
		opts.RecentComments = DefaultRecentComments
	}

	out := make([]Enriched, len(events))
	var taskIDs []string
	commented := make(map[string]bool)
	for i, ev := range events {
		out[i].Event = ev
		if ev.TaskID == nil {
			continue
		}
		switch ev.Kind {
		case TaskCreated:
			taskIDs = append(taskIDs, *ev.TaskID)
		case TaskCommented:
			taskIDs = append(taskIDs, *ev.TaskID)
			commented[*ev.TaskID] = true
		}
	}
	if len(taskIDs) == 0 {
		return out, nil
	}

	var tasks []models.Task
	if err := db.Where("id IN ?", taskIDs).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("eventlog: enrich tasks: %w", err)
	}
	byID := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	comments := make(map[string][]models.Comment, len(commented))
	for id := range commented {
		if byID[id] == nil {
			continue
		}
		var recent []models.Comment
		if err := db.Where("task_id = ?", id).
			Order("created_at DESC, id DESC").
			Limit(opts.RecentComments).
			Find(&recent).Error; err != nil {
			return nil, fmt.Errorf("eventlog: enrich comments for %s: %w", id, err)
		}
		comments[id] = recent
	}

	for i := range out {
		ev := &out[i]
		if ev.TaskID == nil {
			continue
		}
		switch ev.Kind {
		case TaskCreated:
			ev.Task = byID[*ev.TaskID]
		case TaskCommented:
			ev.Task = byID[*ev.TaskID]
			if ev.Task != nil {
				ev.RecentComments = comments[*ev.TaskID]
			}
			var p CommentPayload
			if len(ev.Payload) > 0 && json.Unmarshal(ev.Payload, &p) == nil {
				ev.Mentions = Mentions(p.Body)
			}
		}
	}
	return out, nil
}
