package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/lookup"
	"github.com/flagged-dev/flagged/pkg/resolver"
)

const (
	DefaultMaxActive        = 3
	DefaultInterval         = 500 * time.Millisecond
	DefaultRateLimitBackoff = 5 * time.Minute
	DefaultFetchTimeout     = 30 * time.Second

	cooldownWriteTimeout = 5 * time.Second
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Status is the coarse state surfaced to presentation.
type Status string

const (
	StatusActive      Status = "active"
	StatusRateLimited Status = "rate_limited"
	StatusOff         Status = "off"
	StatusIdle        Status = "idle"
)

// StatusReporter receives status transitions. until is only set for
// StatusRateLimited. It is called with the queue locked and must not call
// back into the Queue.
type StatusReporter interface {
	ReportStatus(s Status, until time.Time)
}

// Fetcher resolves one handle to its raw location.
type Fetcher interface {
	Lookup(ctx context.Context, handle string) (*string, error)
}

// Cache is the part of the resolution cache the queue writes to. Has may be
// called with the queue locked.
type Cache interface {
	Has(handle string) bool
	Put(handle string, loc *string) resolver.Entry
	Remember(handle string, loc *string) resolver.Entry
}

// CooldownStore persists the rate-limit deadline across restarts.
type CooldownStore interface {
	SetRateLimitedUntil(ctx context.Context, t time.Time) error
}

// Config holds everything a Queue needs.
type Config struct {
	Fetcher          Fetcher        // required
	Cache            Cache          // required
	Cooldown         CooldownStore  // optional
	Status           StatusReporter // optional
	MaxActive        int            // defaults to 3 if <= 0
	Interval         time.Duration  // defaults to 500ms if <= 0
	RateLimitBackoff time.Duration  // defaults to 5m if <= 0
	// FetchTimeout bounds one lookup. Lookups outlive the Run context so
	// that a shutdown lets them finish and be cached.
	FetchTimeout time.Duration // defaults to 30s if <= 0
	Now              func() time.Time
	Log              Logger // optional; nil = no logging

	// OnResolved is called after every finished lookup, from the request
	// goroutine. Nil = no callback.
	OnResolved func(handle string, e resolver.Entry, err error)
}

// Queue is a FIFO of handles waiting for a lookup. A fixed-interval tick
// starts at most one request, and no more than MaxActive run at once.
type Queue struct {
	cfg Config
	log Logger

	mu               sync.Mutex
	pending          []string
	queued           map[string]struct{} // pending or in flight
	active           int
	enabled          bool
	rateLimitedUntil time.Time
	status           Status

	inflight sync.WaitGroup
}

func New(cfg Config) *Queue {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = DefaultMaxActive
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = DefaultRateLimitBackoff
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Queue{
		cfg:     cfg,
		log:     log,
		queued:  make(map[string]struct{}),
		enabled: true,
		status:  StatusIdle,
	}
}

// setStatus records s and reports it. Callers hold q.mu.
func (q *Queue) setStatus(s Status) {
	q.status = s
	if q.cfg.Status == nil {
		return
	}
	var until time.Time
	if s == StatusRateLimited {
		until = q.rateLimitedUntil
	}
	q.cfg.Status.ReportStatus(s, until)
}

// Enqueue appends handle unless fetching is disabled, the cache already has
// it, or it is already pending or in flight. It reports whether the handle
// was added.
func (q *Queue) Enqueue(handle string) bool {
	h := filter.CanonicalHandle(handle)
	if h == "" {
		return false
	}
	if q.cfg.Cache.Has(h) {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled {
		return false
	}
	if _, ok := q.queued[h]; ok {
		return false
	}
	q.queued[h] = struct{}{}
	q.pending = append(q.pending, h)
	pendingGauge.Set(float64(len(q.pending)))
	return true
}

// Tick starts at most one lookup. It does nothing while disabled, while
// rate limited, or when MaxActive lookups are already running. Pending
// handles that were cached since they were queued are dropped. It reports
// whether a lookup was started.
func (q *Queue) Tick(ctx context.Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.enabled {
		return false
	}
	if q.cfg.Now().Before(q.rateLimitedUntil) {
		if q.status != StatusRateLimited {
			q.setStatus(StatusRateLimited)
		}
		return false
	}
	if q.active >= q.cfg.MaxActive {
		return false
	}

	for len(q.pending) > 0 {
		h := q.pending[0]
		q.pending[0] = ""
		q.pending = q.pending[1:]
		pendingGauge.Set(float64(len(q.pending)))
		if q.cfg.Cache.Has(h) {
			delete(q.queued, h)
			continue
		}
		q.active++
		q.inflight.Add(1)
		go q.fetch(context.WithoutCancel(ctx), h)
		return true
	}
	return false
}

func (q *Queue) fetch(ctx context.Context, h string) {
	defer q.inflight.Done()
	ctx, cancel := context.WithTimeout(ctx, q.cfg.FetchTimeout)
	defer cancel()

	var (
		entry resolver.Entry
		err   error
	)
	defer func() {
		q.mu.Lock()
		q.active--
		delete(q.queued, h)
		q.mu.Unlock()
		if q.cfg.OnResolved != nil {
			q.cfg.OnResolved(h, entry, err)
		}
	}()
	defer func() {
		// A panicking fetcher must not leak the concurrency slot.
		if r := recover(); r != nil {
			q.log.Errorf("lookup for %s panicked: %v", h, r)
			entry = q.cfg.Cache.Remember(h, nil)
		}
	}()

	var loc *string
	loc, err = q.cfg.Fetcher.Lookup(ctx, h)
	lookupsCounter.WithLabelValues(outcome(err)).Inc()
	switch {
	case errors.Is(err, lookup.ErrRateLimited):
		until := q.cfg.Now().Add(q.cfg.RateLimitBackoff)
		q.mu.Lock()
		if until.After(q.rateLimitedUntil) {
			q.rateLimitedUntil = until
		}
		until = q.rateLimitedUntil
		q.setStatus(StatusRateLimited)
		q.mu.Unlock()
		q.log.Warnf("Rate limited while looking up %s, pausing until %s", h, until.Format(time.RFC3339))
		q.persistCooldown(until)
		entry = q.cfg.Cache.Remember(h, nil)

	case err != nil:
		q.log.Debugf("Lookup for %s failed: %v", h, err)
		entry = q.cfg.Cache.Remember(h, nil)

	default:
		entry = q.cfg.Cache.Put(h, loc)
		q.mu.Lock()
		expired := !q.rateLimitedUntil.IsZero() && !q.cfg.Now().Before(q.rateLimitedUntil)
		if expired {
			q.rateLimitedUntil = time.Time{}
		}
		if q.enabled && !q.cfg.Now().Before(q.rateLimitedUntil) {
			q.setStatus(StatusActive)
		}
		q.mu.Unlock()
		if expired {
			q.persistCooldown(time.Time{})
		}
	}
}

func (q *Queue) persistCooldown(t time.Time) {
	if q.cfg.Cooldown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cooldownWriteTimeout)
	defer cancel()
	if err := q.cfg.Cooldown.SetRateLimitedUntil(ctx, t); err != nil {
		q.log.Debugf("Could not persist rate limit: %v", err)
	}
}

// Run ticks every Interval until ctx is done, then waits for in-flight
// lookups to finish. Cancelling ctx does not cancel them.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			q.Wait()
			return
		case <-ticker.C:
			q.Tick(ctx)
		}
	}
}

// Queued reports whether handle is pending or in flight.
func (q *Queue) Queued(handle string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queued[filter.CanonicalHandle(handle)]
	return ok
}

// Wait blocks until every started lookup has finished.
func (q *Queue) Wait() { q.inflight.Wait() }

// SetEnabled turns fetching on or off. Turning it off drops every pending
// handle; lookups already in flight still complete and are cached.
func (q *Queue) SetEnabled(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enabled == enabled {
		return
	}
	q.enabled = enabled
	if !enabled {
		q.dropPending()
		q.setStatus(StatusOff)
		return
	}
	if q.cfg.Now().Before(q.rateLimitedUntil) {
		q.setStatus(StatusRateLimited)
	} else {
		q.setStatus(StatusActive)
	}
}

// dropPending empties the FIFO. Callers hold q.mu.
func (q *Queue) dropPending() {
	for _, h := range q.pending {
		delete(q.queued, h)
	}
	q.pending = nil
	pendingGauge.Set(0)
}

// Restore applies a cooldown loaded from the store. Deadlines in the past
// are ignored.
func (q *Queue) Restore(until time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.cfg.Now().Before(until) {
		return
	}
	q.rateLimitedUntil = until
	if q.enabled {
		q.setStatus(StatusRateLimited)
	}
}

// Reset drops pending handles and the cooldown.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropPending()
	q.rateLimitedUntil = time.Time{}
}

func (q *Queue) RateLimitedUntil() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rateLimitedUntil
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	Status           Status     `json:"status"`
	Pending          int        `json:"pending"`
	Active           int        `json:"active"`
	RateLimitedUntil *time.Time `json:"rateLimitedUntil,omitempty"`
}

func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Snapshot{Status: q.status, Pending: len(q.pending), Active: q.active}
	if !q.enabled {
		s.Status = StatusOff
	} else if q.cfg.Now().Before(q.rateLimitedUntil) {
		s.Status = StatusRateLimited
		until := q.rateLimitedUntil
		s.RateLimitedUntil = &until
	}
	return s
}
