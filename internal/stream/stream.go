// Package stream fans newly appended board events out to live subscribers.
//
// Delivery is best-effort and at-most-once: each subscriber has a bounded
// buffer, and a slow subscriber loses events (and is told so with a single
// warning) without affecting anyone else. Consumers that need completeness
// reconcile against the event log by sequence number.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/zulandar/corkboard/internal/models"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber queue capacity.
const DefaultBuffer = 256

// KindWarning marks a synthetic message telling a subscriber it lost events.
const KindWarning = "warning"

// Message is what a subscriber receives: either a logged event, or a
// synthetic warning (Event is nil).
type Message struct {
	Kind    string
	Event   *models.Event
	Dropped int64 // events dropped so far, set on warnings
}

// Options configures a Broadcaster.
type Options struct {
	Buffer int
	Logger *zap.Logger
}

// Broadcaster keeps, per board, the set of live subscriptions.
type Broadcaster struct {
	buffer int
	log    *zap.Logger

	mu     sync.Mutex
	boards map[string]*hub
}

// hub is one board's subscriber set. Publish and removal both hold the write
// lock, so offers to one subscriber are serialized and a send never races a
// close.
type hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one client's view of a board's live events.
type Subscription struct {
	BoardID string

	ch      chan Message
	warned  atomic.Bool
	dropped atomic.Int64
	closed  bool // guarded by the owning hub's write lock
}

// New returns a Broadcaster.
func New(opts Options) *Broadcaster {
	if opts.Buffer < 2 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Broadcaster{
		buffer: opts.Buffer,
		log:    opts.Logger,
		boards: make(map[string]*hub),
	}
}

// Events returns the channel to read from. It is closed on Unsubscribe.
func (s *Subscription) Events() <-chan Message {
	return s.ch
}

// Dropped returns how many events this subscriber has lost to backpressure.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Subscribe registers a new subscriber for boardID.
func (b *Broadcaster) Subscribe(boardID string) *Subscription {
	sub := &Subscription{
		BoardID: boardID,
		ch:      make(chan Message, b.buffer),
	}

	b.mu.Lock()
	h, ok := b.boards[boardID]
	if !ok {
		h = &hub{subs: make(map[*Subscription]struct{})}
		b.boards[boardID] = h
	}
	// Taking the hub lock while holding b.mu keeps Unsubscribe from
	// dropping the hub between lookup and insert.
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more
// than once and concurrently with Publish.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.boards[sub.BoardID]
	if !ok {
		return
	}
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	empty := len(h.subs) == 0
	h.mu.Unlock()
	if empty {
		delete(b.boards, sub.BoardID)
	}
}

// Publish hands ev to every subscriber of its board. It never blocks.
func (b *Broadcaster) Publish(ev models.Event) {
	b.mu.Lock()
	h := b.boards[ev.BoardID]
	b.mu.Unlock()
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		b.offer(sub, ev)
	}
}

// offer enqueues ev for sub. The last buffer slot is reserved so that when
// the subscriber falls behind, a warning can take the dropped event's place.
func (b *Broadcaster) offer(sub *Subscription, ev models.Event) {
	if len(sub.ch) < cap(sub.ch)-1 {
		e := ev
		select {
		case sub.ch <- Message{Kind: ev.Kind, Event: &e}:
			sub.warned.Store(false)
			return
		default:
		}
	}

	dropped := sub.dropped.Add(1)
	if sub.warned.CompareAndSwap(false, true) {
		select {
		case sub.ch <- Message{Kind: KindWarning, Dropped: dropped}:
		default:
		}
		b.log.Warn("stream subscriber overflow",
			zap.String("board_id", ev.BoardID),
			zap.Int64("seq", ev.Seq),
			zap.Int64("dropped", dropped))
	}
}

// SubscriberCount returns the number of live subscribers for boardID.
func (b *Broadcaster) SubscriberCount(boardID string) int {
	b.mu.Lock()
	h := b.boards[boardID]
	b.mu.Unlock()
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
