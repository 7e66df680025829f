// Package resolver keeps the per-handle resolution results in memory, backed
// by a persistent store.
package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flagged-dev/flagged/pkg/country"
	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/storage"
)

// persistTimeout bounds one background write.
const persistTimeout = 10 * time.Second

type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Entry is the resolution result for one handle. Derived fields are
// recomputed from Country whenever the policy changes.
type Entry struct {
	Handle      string    `json:"handle"`
	Country     *string   `json:"country"`
	Code        string    `json:"code,omitempty"`
	Continent   string    `json:"continent,omitempty"`
	Flag        string    `json:"flag"`
	MatchesList bool      `json:"matchesList"`
	ShouldHide  bool      `json:"shouldHide"`
	LastChecked time.Time `json:"lastChecked"`
}

// Known reports whether the account reported a location.
func (e Entry) Known() bool { return e.Country != nil }

type Config struct {
	Store  storage.Store    // nil runs memory-only
	Policy *filter.Policy   // defaults to filter.DefaultSettings
	Now    func() time.Time // defaults to time.Now
	Log    Logger           // optional; nil = no logging

	// OnMiss is called once per Resolve that finds the handle neither in
	// memory nor in the store. Nil = no callback.
	OnMiss func(handle string)
}

type Cache struct {
	store  storage.Store
	now    func() time.Time
	log    Logger
	onMiss func(string)

	policy atomic.Pointer[filter.Policy]

	mu      sync.RWMutex
	entries map[string]Entry
	// evicted handles waiting for a fresh lookup; Resolve skips the store
	// for them until Remember lands a new result.
	refetch map[string]struct{}

	reads   singleflight.Group
	pending sync.WaitGroup
}

func New(cfg Config) *Cache {
	c := &Cache{
		store:   cfg.Store,
		now:     cfg.Now,
		log:     cfg.Log,
		onMiss:  cfg.OnMiss,
		entries: make(map[string]Entry),
		refetch: make(map[string]struct{}),
	}
	if c.store == nil {
		c.store = storage.Unavailable{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = nopLogger{}
	}
	p := cfg.Policy
	if p == nil {
		p = filter.Compile(filter.DefaultSettings())
	}
	c.policy.Store(p)
	return c
}

// SetMissHandler replaces the OnMiss callback. It must be called before the
// cache is shared between goroutines.
func (c *Cache) SetMissHandler(fn func(handle string)) { c.onMiss = fn }

func (c *Cache) Policy() *filter.Policy { return c.policy.Load() }

func (c *Cache) build(handle string, loc *string, checked time.Time) Entry {
	e := Entry{Handle: handle, Country: loc, LastChecked: checked}
	raw := ""
	if loc != nil {
		raw = *loc
	}
	n := country.Normalize(raw)
	e.Code, e.Continent, e.Flag = n.Code, n.Continent, n.Flag
	d := c.Policy().Decide(raw)
	e.MatchesList, e.ShouldHide = d.MatchesList, d.ShouldHide
	return e
}

// Get returns the in-memory entry for handle without touching the store.
func (c *Cache) Get(handle string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[filter.CanonicalHandle(handle)]
	c.mu.RUnlock()
	return e, ok
}

func (c *Cache) Has(handle string) bool {
	_, ok := c.Get(handle)
	return ok
}

// Resolve returns the entry for handle from memory or, failing that, from
// the persistent store. Concurrent calls for one handle share a single store
// read. Store errors count as a miss.
func (c *Cache) Resolve(ctx context.Context, handle string) (Entry, bool) {
	h := filter.CanonicalHandle(handle)
	if h == "" {
		return Entry{}, false
	}
	if e, ok := c.Get(h); ok {
		cacheLookupsCounter.WithLabelValues("memory").Inc()
		return e, true
	}
	if c.Refetching(h) {
		cacheLookupsCounter.WithLabelValues("miss").Inc()
		if c.onMiss != nil {
			c.onMiss(h)
		}
		return Entry{}, false
	}

	v, _, _ := c.reads.Do(h, func() (interface{}, error) {
		if e, ok := c.Get(h); ok {
			return &e, nil
		}
		rec, found, err := c.store.Get(ctx, h)
		if err != nil {
			storeErrorsCounter.WithLabelValues("get").Inc()
			c.log.Debugf("store read for %s failed: %v", h, err)
		}
		if err != nil || !found {
			cacheLookupsCounter.WithLabelValues("miss").Inc()
			if c.onMiss != nil {
				c.onMiss(h)
			}
			return (*Entry)(nil), nil
		}

		cacheLookupsCounter.WithLabelValues("store").Inc()
		e := c.build(h, rec.Country, rec.CheckedAt())
		c.mu.Lock()
		defer c.mu.Unlock()
		// A fetch may have landed while the read was in flight; keep it.
		if cur, ok := c.entries[h]; ok {
			return &cur, nil
		}
		if _, ok := c.refetch[h]; ok {
			return (*Entry)(nil), nil
		}
		c.entries[h] = e
		return &e, nil
	})

	e, _ := v.(*Entry)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Remember stores a result in memory only.
func (c *Cache) Remember(handle string, loc *string) Entry {
	h := filter.CanonicalHandle(handle)
	e := c.build(h, loc, c.now())
	c.mu.Lock()
	c.entries[h] = e
	delete(c.refetch, h)
	c.mu.Unlock()
	return e
}

// Put stores a result in memory and writes it to the store in the
// background. Write failures are logged and dropped.
func (c *Cache) Put(handle string, loc *string) Entry {
	e := c.Remember(handle, loc)
	rec := storage.Record{Handle: e.Handle, Country: e.Country, LastChecked: e.LastChecked.UnixMilli()}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.store.Put(ctx, rec); err != nil {
			storeErrorsCounter.WithLabelValues("put").Inc()
			c.log.Debugf("persisting %s failed: %v", rec.Handle, err)
		}
	}()
	return e
}

// Flush blocks until every background write started so far has finished.
func (c *Cache) Flush() { c.pending.Wait() }

// SetPolicy swaps the policy and recomputes every entry's derived fields
// from its stored location. No lookups are issued.
func (c *Cache) SetPolicy(p *filter.Policy) {
	c.policy.Store(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, e := range c.entries {
		c.entries[h] = c.build(h, e.Country, e.LastChecked)
	}
}

// Evict drops handle from memory and marks it for refetch: Resolve reports
// a miss without reading the store until Remember or Put stores a new
// result, or Unmark lifts the mark.
func (c *Cache) Evict(handle string) bool {
	h := filter.CanonicalHandle(handle)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[h]
	delete(c.entries, h)
	c.refetch[h] = struct{}{}
	return ok
}

// Unmark lifts the refetch mark set by Evict or EvictUnknown, so the next
// Resolve reads the store again.
func (c *Cache) Unmark(handle string) {
	h := filter.CanonicalHandle(handle)
	c.mu.Lock()
	delete(c.refetch, h)
	c.mu.Unlock()
}

// Refetching reports whether handle was evicted and has no new result yet.
func (c *Cache) Refetching(handle string) bool {
	c.mu.RLock()
	_, ok := c.refetch[filter.CanonicalHandle(handle)]
	c.mu.RUnlock()
	return ok
}

// EvictUnknown drops every entry without a location that was checked
// before cutoff, marks it for refetch like Evict, and returns the evicted
// handles. A zero cutoff evicts all of them.
func (c *Cache) EvictUnknown(cutoff time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for h, e := range c.entries {
		if e.Country != nil {
			continue
		}
		if !cutoff.IsZero() && !e.LastChecked.Before(cutoff) {
			continue
		}
		delete(c.entries, h)
		c.refetch[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Reset drops every in-memory entry. The store is untouched.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.refetch = make(map[string]struct{})
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of every in-memory entry.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}
