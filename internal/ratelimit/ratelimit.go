// Package ratelimit bounds unauthenticated board creation per client address.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zulandar/corkboard/internal/kanban"
	"golang.org/x/time/rate"
)

// Defaults: ten creations per hour per address.
const (
	DefaultLimit  = 10
	DefaultWindow = time.Hour
)

// Result describes the state of one key's allowance after a check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration // until the allowance is fully restored
	RetryIn   time.Duration // until the next request would be allowed; 0 when allowed
}

// Exceeded is returned when a key has used up its allowance.
type Exceeded struct {
	Err    *kanban.Error
	Result Result
}

func (e *Exceeded) Error() string { return e.Err.Error() }

// Unwrap exposes the classified error.
func (e *Exceeded) Unwrap() error { return e.Err }

// Limiter is a per-key token bucket: Limit requests may burst, and the
// allowance refills continuously over Window.
type Limiter struct {
	limit  int
	window time.Duration
	every  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New returns a Limiter allowing limit requests per window per key.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow consumes one request for key.
func (l *Limiter) Allow(key string) Result {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.every, l.limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	allowed := b.AllowN(now, 1)
	tokens := b.TokensAt(now)
	res := Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		Reset:     l.untilTokens(float64(l.limit), tokens),
	}
	if !allowed {
		res.RetryIn = l.untilTokens(1, tokens)
	}
	return res
}

// Check is Allow returning an *Exceeded error when denied.
func (l *Limiter) Check(key string) (Result, error) {
	res := l.Allow(key)
	if res.Allowed {
		return res, nil
	}
	return res, &Exceeded{
		Err:    kanban.New(kanban.RateLimitExceeded, "limit of %d per %s reached; retry in %s", l.limit, l.window, res.RetryIn.Round(time.Second)),
		Result: res,
	}
}

// Sweep forgets keys whose allowance is fully restored. It keeps the map
// from growing without bound and is meant to run periodically.
func (l *Limiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.buckets {
		if b.TokensAt(now) >= float64(l.limit) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) untilTokens(want, have float64) time.Duration {
	if have >= want {
		return 0
	}
	perToken := l.window / time.Duration(l.limit)
	return time.Duration(math.Ceil((want - have) * float64(perToken)))
}

func (r Result) String() string {
	return fmt.Sprintf("allowed=%t limit=%d remaining=%d reset=%s", r.Allowed, r.Limit, r.Remaining, r.Reset)
}
