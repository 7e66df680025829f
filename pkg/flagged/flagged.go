// Package flagged ties the resolution cache, the fetch queue and the filter
// policy into one service.
package flagged

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/polling"
	"github.com/flagged-dev/flagged/pkg/resolver"
	"github.com/flagged-dev/flagged/pkg/storage"
)

// ErrNotResolved is returned by Await when ctx ends before a lookup result
// arrives, or when fetching is disabled and nothing is cached.
var ErrNotResolved = errors.New("flagged: account not resolved")

type Options struct {
	Settings filter.Settings
	Store    storage.Store   // nil runs memory-only
	Fetcher  polling.Fetcher // required for lookups

	MaxActive        int
	Interval         time.Duration
	RateLimitBackoff time.Duration
	FetchTimeout     time.Duration

	Now func() time.Time
	Log polling.Logger

	// OnStatus observes queue status changes. It must not call back into
	// the Service.
	OnStatus func(s polling.Status, until time.Time)
}

type Service struct {
	store    storage.Store
	cache    *resolver.Cache
	queue    *polling.Queue
	log      polling.Logger
	now      func() time.Time
	onStatus func(polling.Status, time.Time)

	settingsMu sync.Mutex
	settings   filter.Settings

	waitMu  sync.Mutex
	waiters map[string][]chan struct{}
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

func New(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		log:      opts.Log,
		now:      opts.Now,
		onStatus: opts.OnStatus,
		waiters:  make(map[string][]chan struct{}),
	}
	if s.store == nil {
		s.store = storage.Unavailable{}
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	policy := filter.Compile(Clean(opts.Settings))
	s.settings = policy.Settings
	s.cache = resolver.New(resolver.Config{
		Store:  s.store,
		Policy: policy,
		Now:    s.now,
		Log:    s.log,
	})
	s.queue = polling.New(polling.Config{
		Fetcher:          opts.Fetcher,
		Cache:            s.cache,
		Cooldown:         s.store,
		Status:           s,
		MaxActive:        opts.MaxActive,
		Interval:         opts.Interval,
		RateLimitBackoff: opts.RateLimitBackoff,
		FetchTimeout:     opts.FetchTimeout,
		Now:              s.now,
		Log:              s.log,
		OnResolved:       s.resolved,
	})
	s.cache.SetMissHandler(s.miss)
	s.queue.SetEnabled(policy.FetchEnabled())
	return s
}

// Clean runs user-entered lists through the list parsers: flag emoji are
// expanded, handles canonicalized, blanks and duplicates dropped.
func Clean(settings filter.Settings) filter.Settings {
	settings.BlockList = filter.ParseList(strings.Join(settings.BlockList, "\n"))
	settings.AllowHandles = filter.ParseHandles(settings.AllowHandles)
	settings.DenyHandles = filter.ParseHandles(settings.DenyHandles)
	return settings
}

// ReportStatus implements polling.StatusReporter.
func (s *Service) ReportStatus(st polling.Status, until time.Time) {
	if st == polling.StatusRateLimited {
		s.log.Infof("Status %s until %s", st, until.Format(time.RFC3339))
	} else {
		s.log.Infof("Status %s", st)
	}
	if s.onStatus != nil {
		s.onStatus(st, until)
	}
}

// miss queues a lookup. With fetching off a refetch mark is lifted so the
// store is read again next time.
func (s *Service) miss(handle string) {
	if s.cache.Policy().FetchEnabled() {
		s.queue.Enqueue(handle)
		return
	}
	s.cache.Unmark(handle)
}

func (s *Service) resolved(handle string, _ resolver.Entry, _ error) {
	s.waitMu.Lock()
	chans := s.waiters[handle]
	delete(s.waiters, handle)
	s.waitMu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

// Init restores a persisted cooldown. A store failure leaves the queue
// without a cooldown.
func (s *Service) Init(ctx context.Context) {
	until, err := s.store.RateLimitedUntil(ctx)
	if err != nil {
		s.log.Debugf("Could not read persisted rate limit: %v", err)
		return
	}
	if !until.IsZero() {
		s.queue.Restore(until)
	}
}

// Settings returns the current, normalized settings.
func (s *Service) Settings() filter.Settings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings
}

// UpdateSettings applies a new snapshot: every cached decision is
// recomputed and the queue follows the fetch switches.
func (s *Service) UpdateSettings(settings filter.Settings) filter.Settings {
	settings = Clean(settings)
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	policy := filter.Compile(settings)
	s.settings = policy.Settings
	s.cache.SetPolicy(policy)
	s.queue.SetEnabled(policy.FetchEnabled())
	return s.settings
}

// Check returns the verdict for handle from what is known right now. A
// handle that is neither cached nor stored is queued for lookup and gets a
// pass-through verdict until the result arrives.
func (s *Service) Check(ctx context.Context, handle string) filter.Verdict {
	entry, ok := s.cache.Resolve(ctx, handle)
	return s.cache.Policy().Evaluate(handle, entry.Country, ok)
}

// Await is Check that waits for a pending lookup to finish.
func (s *Service) Await(ctx context.Context, handle string) (filter.Verdict, error) {
	h := filter.CanonicalHandle(handle)
	if h == "" {
		return filter.Verdict{}, ErrNotResolved
	}

	ch := make(chan struct{})
	s.waitMu.Lock()
	s.waiters[h] = append(s.waiters[h], ch)
	s.waitMu.Unlock()
	defer s.dropWaiter(h, ch)

	if v := s.Check(ctx, h); v.Known {
		return v, nil
	}
	if !s.cache.Policy().FetchEnabled() {
		return s.Check(ctx, h), ErrNotResolved
	}

	select {
	case <-ch:
		return s.Check(ctx, h), nil
	case <-ctx.Done():
		return s.Check(context.Background(), h), ErrNotResolved
	}
}

func (s *Service) dropWaiter(h string, ch chan struct{}) {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	list := s.waiters[h]
	for i, c := range list {
		if c == ch {
			s.waiters[h] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.waiters[h]) == 0 {
		delete(s.waiters, h)
	}
}

// Lookup returns the cached entry for handle without queueing anything.
func (s *Service) Lookup(handle string) (resolver.Entry, bool) {
	return s.cache.Get(handle)
}

// Put records a location by hand, in memory and in the store. A pending
// lookup for handle is skipped and its waiters are released.
func (s *Service) Put(handle string, loc *string) resolver.Entry {
	e := s.cache.Put(handle, loc)
	s.resolved(e.Handle, e, nil)
	return e
}

// Refetch forgets cached unknowns checked more than staleAfter ago (all of
// them when staleAfter <= 0) and queues each one again. Until the new lookup
// lands, Check and Await treat them as misses instead of reading the old
// record back from the store. It returns the queued handles.
func (s *Service) Refetch(staleAfter time.Duration) []string {
	var cutoff time.Time
	if staleAfter > 0 {
		cutoff = s.now().Add(-staleAfter)
	}
	var out []string
	for _, h := range s.cache.EvictUnknown(cutoff) {
		if s.queue.Enqueue(h) {
			out = append(out, h)
		} else if !s.queue.Queued(h) {
			s.cache.Unmark(h)
		}
	}
	return out
}

// Resolve returns the entry for handle from memory or the store, queueing a
// lookup on a miss.
func (s *Service) Resolve(ctx context.Context, handle string) (resolver.Entry, bool) {
	return s.cache.Resolve(ctx, handle)
}

// Evict forgets handle in memory and queues it again if fetching is on.
// With fetching off the next Resolve reads the store again.
func (s *Service) Evict(handle string) bool {
	ok := s.cache.Evict(handle)
	if !s.cache.Policy().FetchEnabled() || (!s.queue.Enqueue(handle) && !s.queue.Queued(handle)) {
		s.cache.Unmark(handle)
	}
	return ok
}

// Run drives the queue until ctx is done.
func (s *Service) Run(ctx context.Context) { s.queue.Run(ctx) }

// Reset drops all in-memory state: cached entries, pending handles and the
// cooldown. The store is untouched.
func (s *Service) Reset() {
	s.cache.Reset()
	s.queue.Reset()
}

// Status is the service-level view for presentation.
type Status struct {
	polling.Snapshot
	Cached  int  `json:"cached"`
	Enabled bool `json:"enabled"`
}

func (s *Service) Status() Status {
	return Status{
		Snapshot: s.queue.Snapshot(),
		Cached:   s.cache.Len(),
		Enabled:  s.Settings().Enabled,
	}
}

func (s *Service) Count(ctx context.Context) (int, error) { return s.store.Count(ctx) }

// Clear empties the store, the in-memory cache and the cooldown.
func (s *Service) Clear(ctx context.Context) error {
	s.cache.Flush()
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.cache.Reset()
	s.queue.Reset()
	return nil
}

func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	s.cache.Flush()
	return storage.Export(ctx, s.store, w)
}

// Import merges an export document into the store. The in-memory cache is
// dropped so merged records are read back on next use.
func (s *Service) Import(ctx context.Context, r io.Reader) (storage.ImportResult, error) {
	s.cache.Flush()
	res, err := storage.Import(ctx, s.store, r, s.now())
	s.cache.Reset()
	return res, err
}

// Close waits for in-flight lookups and writes, then closes the store.
func (s *Service) Close() error {
	s.queue.Wait()
	s.cache.Flush()
	return s.store.Close()
}
