package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher defaults.
const (
	DefaultWorkers          = 4
	DefaultQueueSize        = 1024
	DefaultTimeout          = 10 * time.Second
	DefaultFailureThreshold = 10
)

// Failure kinds reported by DeliveryError.
const (
	FailTimeout = "timeout"
	FailStatus  = "status"
	FailNetwork = "network"
)

// DeliveryError describes a failed delivery attempt.
type DeliveryError struct {
	Kind       string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case FailStatus:
		return fmt.Sprintf("webhook: delivery: status %d", e.StatusCode)
	default:
		return fmt.Sprintf("webhook: delivery: %s: %v", e.Kind, e.Err)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Options configures a Dispatcher. Zero values take the defaults.
type Options struct {
	Workers          int
	QueueSize        int
	Timeout          time.Duration
	FailureThreshold int
	RecentComments   int
	UserAgent        string
	Logger           *zap.Logger
	Client           *http.Client
}

// Dispatcher delivers board events to registered webhooks off the write
// path. Each event is attempted at most once per registration.
type Dispatcher struct {
	db    *gorm.DB
	opts  Options
	log   *zap.Logger
	http  *http.Client
	queue chan models.Event
	now   func() time.Time

	wg sync.WaitGroup
}

// NewDispatcher returns a Dispatcher reading registrations from db.
func NewDispatcher(db *gorm.DB, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "corkboard-webhook/dev"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		db:    db,
		opts:  opts,
		log:   opts.Logger,
		http:  client,
		queue: make(chan models.Event, opts.QueueSize),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue hands an event to the workers without blocking. When the queue is
// full the event is dropped for webhooks and logged.
func (d *Dispatcher) Enqueue(ev models.Event) {
	select {
	case d.queue <- ev:
	default:
		d.log.Warn("webhook queue full, dropping event",
			zap.String("board", ev.BoardID),
			zap.Int64("seq", ev.Seq),
			zap.String("kind", ev.Kind))
	}
}

// Start runs the workers until ctx is cancelled. Wait blocks until they
// have exited.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
}

// Wait blocks until all workers started by Start have returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.Process(ctx, ev)
		}
	}
}

// Process delivers ev to every active registration of its board that
// subscribes to its kind. Failures are recorded, never returned.
func (d *Dispatcher) Process(ctx context.Context, ev models.Event) {
	var hooks []models.Webhook
	if err := d.db.WithContext(ctx).
		Where("board_id = ? AND active = ?", ev.BoardID, true).
		Find(&hooks).Error; err != nil {
		d.log.Error("load webhooks", zap.String("board", ev.BoardID), zap.Error(err))
		return
	}
	var targets []models.Webhook
	for _, h := range hooks {
		if Subscribed(&h, ev.Kind) {
			targets = append(targets, h)
		}
	}
	if len(targets) == 0 {
		return
	}

	enriched, err := eventlog.Enrich(d.db.WithContext(ctx), []models.Event{ev}, eventlog.EnrichOpts{
		RecentComments: d.opts.RecentComments,
	})
	if err != nil {
		d.log.Error("enrich event", zap.String("board", ev.BoardID), zap.Int64("seq", ev.Seq), zap.Error(err))
		return
	}
	env := NewEnvelope(enriched[0], d.now())
	for i := range targets {
		_ = d.Deliver(ctx, &targets[i], env)
	}
}

// Deliver makes one signed POST of env to hook and records the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, hook *models.Webhook, env Envelope) error {
	body, err := Body(hook.Format, env)
	if err != nil {
		return err
	}
	derr := d.post(ctx, hook, env, body)
	if derr == nil {
		d.recordSuccess(ctx, hook)
		return nil
	}
	d.log.Warn("webhook delivery failed",
		zap.String("webhook", hook.ID),
		zap.String("board", hook.BoardID),
		zap.String("kind", derr.Kind),
		zap.Int("status", derr.StatusCode),
		zap.Error(derr.Err))
	d.recordFailure(ctx, hook)
	return derr
}

func (d *Dispatcher) post(ctx context.Context, hook *models.Webhook, env Envelope, body []byte) *DeliveryError {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Kind: FailNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.opts.UserAgent)
	req.Header.Set(HeaderSignature, Sign(hook.Secret, body))
	req.Header.Set(HeaderEvent, env.Event)
	req.Header.Set(HeaderBoard, env.BoardID)
	req.Header.Set(HeaderDelivery, uuid.NewString())

	resp, err := d.http.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			return &DeliveryError{Kind: FailTimeout, Err: err}
		}
		return &DeliveryError{Kind: FailNetwork, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{Kind: FailStatus, StatusCode: resp.StatusCode}
	}
	return nil
}

func (d *Dispatcher) recordSuccess(ctx context.Context, hook *models.Webhook) {
	now := d.now()
	err := d.db.WithContext(ctx).Model(&models.Webhook{}).Where("id = ?", hook.ID).Updates(map[string]any{
		"failure_count":     0,
		"last_triggered_at": now,
	}).Error
	if err != nil {
		d.log.Error("record webhook success", zap.String("webhook", hook.ID), zap.Error(err))
	}
}

// recordFailure bumps the counter in place and deactivates the hook once
// it reaches the threshold, so concurrent failures never lose a count.
func (d *Dispatcher) recordFailure(ctx context.Context, hook *models.Webhook) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Webhook{}).Where("id = ?", hook.ID).
			UpdateColumn("failure_count", gorm.Expr("failure_count + ?", 1)).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Webhook{}).
			Where("id = ? AND active = ? AND failure_count >= ?", hook.ID, true, d.opts.FailureThreshold).
			UpdateColumn("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			d.log.Warn("webhook deactivated after repeated failures",
				zap.String("webhook", hook.ID),
				zap.String("board", hook.BoardID),
				zap.Int("threshold", d.opts.FailureThreshold))
		}
		return nil
	})
	if err != nil {
		d.log.Error("record webhook failure", zap.String("webhook", hook.ID), zap.Error(err))
	}
}
