// Package webhook manages outbound webhook registrations and delivers
// signed notifications for board events.
package webhook

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SecretPrefix marks raw signing secrets.
const SecretPrefix = "whsec_"

// Body formats.
const (
	FormatGeneric = "generic"
	FormatSlack   = "slack"
	FormatDiscord = "discord"
)

// CreateOpts holds parameters for registering a webhook. An empty Events list
// subscribes to every kind.
type CreateOpts struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Format string   `json:"format"`
}

// UpdateOpts is a partial registration update. Setting Active resets the
// failure count, which is how a deactivated hook is revived.
type UpdateOpts struct {
	URL    *string   `json:"url"`
	Events *[]string `json:"events"`
	Format *string   `json:"format"`
	Active *bool     `json:"active"`
}

// Registered is the result of Create. Secret is only ever returned here.
type Registered struct {
	Webhook *models.Webhook `json:"webhook"`
	Secret  string          `json:"secret"`
}

// Create registers a webhook for a board and generates its signing secret.
func Create(db *gorm.DB, boardID string, opts CreateOpts) (*Registered, error) {
	u, err := validateURL(opts.URL)
	if err != nil {
		return nil, err
	}
	events, err := validateEvents(opts.Events)
	if err != nil {
		return nil, err
	}
	format, err := validateFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	secret, err := newSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hook := &models.Webhook{
		ID:        uuid.NewString(),
		BoardID:   boardID,
		URL:       u,
		Events:    datatypes.JSONSlice[string](events),
		Secret:    secret,
		Format:    format,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(hook).Error; err != nil {
		return nil, fmt.Errorf("webhook: create: %w", err)
	}
	return &Registered{Webhook: hook, Secret: secret}, nil
}

// List returns a board's registrations, oldest first.
func List(db *gorm.DB, boardID string) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := db.Where("board_id = ?", boardID).Order("created_at ASC, id ASC").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("webhook: list %s: %w", boardID, err)
	}
	return hooks, nil
}

// Get returns one registration of a board.
func Get(db *gorm.DB, boardID, id string) (*models.Webhook, error) {
	var hook models.Webhook
	if err := db.Where("id = ? AND board_id = ?", id, boardID).First(&hook).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, kanban.New(kanban.WebhookNotFound, "%s", id)
		}
		return nil, fmt.Errorf("webhook: get %s: %w", id, err)
	}
	return &hook, nil
}

// Update applies a partial update to a registration.
func Update(db *gorm.DB, boardID, id string, opts UpdateOpts) (*models.Webhook, error) {
	hook, err := Get(db, boardID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if opts.URL != nil {
		u, err := validateURL(*opts.URL)
		if err != nil {
			return nil, err
		}
		updates["url"] = u
	}
	if opts.Events != nil {
		events, err := validateEvents(*opts.Events)
		if err != nil {
			return nil, err
		}
		updates["events"] = datatypes.JSONSlice[string](events)
	}
	if opts.Format != nil {
		format, err := validateFormat(*opts.Format)
		if err != nil {
			return nil, err
		}
		updates["format"] = format
	}
	if opts.Active != nil {
		updates["active"] = *opts.Active
		updates["failure_count"] = 0
	}
	if len(updates) == 0 {
		return hook, nil
	}
	updates["updated_at"] = time.Now().UTC()
	if err := db.Model(&models.Webhook{}).Where("id = ?", hook.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("webhook: update %s: %w", id, err)
	}
	return Get(db, boardID, id)
}

// Delete removes a registration.
func Delete(db *gorm.DB, boardID, id string) error {
	res := db.Where("id = ? AND board_id = ?", id, boardID).Delete(&models.Webhook{})
	if res.Error != nil {
		return fmt.Errorf("webhook: delete %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return kanban.New(kanban.WebhookNotFound, "%s", id)
	}
	return nil
}

// Subscribed reports whether hook wants events of kind.
func Subscribed(hook *models.Webhook, kind string) bool {
	if len(hook.Events) == 0 {
		return true
	}
	for _, k := range hook.Events {
		if k == kind {
			return true
		}
	}
	return false
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", kanban.New(kanban.EmptyURL, "webhook url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", kanban.New(kanban.InvalidURL, "%q is not an http(s) url", raw)
	}
	return raw, nil
}

func validateEvents(events []string) ([]string, error) {
	out := make([]string, 0, len(events))
	seen := make(map[string]bool, len(events))
	for _, k := range events {
		k = strings.TrimSpace(k)
		if !eventlog.ValidKind(k) {
			return nil, kanban.New(kanban.InvalidEventType, "unknown event kind %q", k)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

func validateFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatGeneric:
		return FormatGeneric, nil
	case FormatSlack:
		return FormatSlack, nil
	case FormatDiscord:
		return FormatDiscord, nil
	default:
		return "", kanban.New(kanban.InvalidFormat, "unknown webhook format %q", format)
	}
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("webhook: generate secret: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(b), nil
}
