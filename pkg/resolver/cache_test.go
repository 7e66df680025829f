package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/storage"
)

func strPtr(s string) *string { return &s }

// memStore is an in-memory storage.Store. When gate is set, Get blocks on it.
type memStore struct {
	mu      sync.Mutex
	records map[string]storage.Record
	gets    int32
	entered chan struct{}
	gate    chan struct{}
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]storage.Record)}
}

func (m *memStore) Get(ctx context.Context, handle string) (storage.Record, bool, error) {
	atomic.AddInt32(&m.gets, 1)
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[handle]
	return r, ok, nil
}

func (m *memStore) Put(ctx context.Context, rec storage.Record) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Handle] = rec
	return nil
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]storage.Record)
	return nil
}

func (m *memStore) Iterate(ctx context.Context, fn func(storage.Record) error) error {
	m.mu.Lock()
	recs := make([]storage.Record, 0, len(m.records))
	for _, r := range m.records {
		recs = append(recs, r)
	}
	m.mu.Unlock()
	for _, r := range recs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) RateLimitedUntil(context.Context) (time.Time, error)  { return time.Time{}, nil }
func (m *memStore) SetRateLimitedUntil(context.Context, time.Time) error { return nil }
func (m *memStore) Close() error                                         { return nil }

func TestResolveCoalescesStoreReads(t *testing.T) {
	store := newMemStore()
	store.records["alice"] = storage.Record{Handle: "alice", Country: strPtr("India"), LastChecked: 1}
	store.entered = make(chan struct{}, 4)
	store.gate = make(chan struct{})

	c := New(Config{Store: store})

	var wg sync.WaitGroup
	results := make([]Entry, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.Resolve(context.Background(), "alice")
	}()
	<-store.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = c.Resolve(context.Background(), "@Alice")
	}()
	// Give the second caller time to join the in-flight read.
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	if n := atomic.LoadInt32(&store.gets); n != 1 {
		t.Fatalf("store read %d times, want 1", n)
	}
	for i, e := range results {
		if e.Code != "IN" || !e.ShouldHide {
			t.Fatalf("result %d = %+v", i, e)
		}
	}

	// Now served from memory.
	if _, ok := c.Resolve(context.Background(), "alice"); !ok {
		t.Fatalf("expected memory hit")
	}
	if n := atomic.LoadInt32(&store.gets); n != 1 {
		t.Fatalf("memory hit went to the store")
	}
}

func TestResolveMissCallsOnMiss(t *testing.T) {
	var missed []string
	c := New(Config{Store: newMemStore(), OnMiss: func(h string) { missed = append(missed, h) }})

	if _, ok := c.Resolve(context.Background(), " @Bob "); ok {
		t.Fatalf("unexpected hit")
	}
	if len(missed) != 1 || missed[0] != "bob" {
		t.Fatalf("missed = %v", missed)
	}
	if _, ok := c.Resolve(context.Background(), ""); ok || len(missed) != 1 {
		t.Fatalf("empty handle should be ignored")
	}
}

func TestResolveDegradesWhenStoreUnavailable(t *testing.T) {
	var missed int
	c := New(Config{Store: storage.Unavailable{Cause: errors.New("gone")}, OnMiss: func(string) { missed++ }})
	if _, ok := c.Resolve(context.Background(), "x"); ok {
		t.Fatalf("unexpected hit")
	}
	if missed != 1 {
		t.Fatalf("store failure should count as a miss")
	}

	// Writes fail silently and memory stays authoritative.
	c.Put("x", strPtr("Japan"))
	c.Flush()
	if e, ok := c.Get("x"); !ok || e.Code != "JP" {
		t.Fatalf("entry = %+v, %v", e, ok)
	}
}

func TestPutPersists(t *testing.T) {
	store := newMemStore()
	now := time.UnixMilli(1_700_000_000_000)
	c := New(Config{Store: store, Now: func() time.Time { return now }})

	e := c.Put("@Carol", nil)
	if e.Handle != "carol" || e.Known() || e.Flag != "\U0001F310" {
		t.Fatalf("entry = %+v", e)
	}
	c.Flush()
	rec, ok, _ := store.Get(context.Background(), "carol")
	if !ok || rec.Country != nil || rec.LastChecked != now.UnixMilli() {
		t.Fatalf("persisted = %+v, %v", rec, ok)
	}
}

func TestRememberDoesNotPersist(t *testing.T) {
	store := newMemStore()
	c := New(Config{Store: store})
	c.Remember("dave", nil)
	c.Flush()
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("Remember wrote to the store")
	}
	if !c.Has("DAVE") {
		t.Fatalf("Remember did not populate memory")
	}
}

func TestSetPolicyRecomputes(t *testing.T) {
	c := New(Config{Store: newMemStore()})
	c.Remember("a", strPtr("India"))
	c.Remember("b", strPtr("Japan"))

	if e, _ := c.Get("a"); !e.ShouldHide {
		t.Fatalf("default policy should hide India")
	}

	s := filter.DefaultSettings()
	s.BlockList = []string{"Japan"}
	c.SetPolicy(filter.Compile(s))

	if e, _ := c.Get("a"); e.ShouldHide || e.MatchesList {
		t.Fatalf("a after change = %+v", e)
	}
	if e, _ := c.Get("b"); !e.ShouldHide {
		t.Fatalf("b after change = %+v", e)
	}

	s.FilterMode = filter.ModeAllowlist
	c.SetPolicy(filter.Compile(s))
	if e, _ := c.Get("a"); !e.ShouldHide {
		t.Fatalf("allowlist should hide a: %+v", e)
	}
}

func TestEvict(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	c := New(Config{Store: newMemStore(), Now: func() time.Time { return now }})
	c.Remember("a", nil)
	c.Remember("b", strPtr("Peru"))
	c.Remember("c", nil)
	now = now.Add(10 * time.Minute)
	c.Remember("d", nil)

	if !c.Evict("@A") || c.Evict("a") {
		t.Fatalf("Evict did not report presence correctly")
	}
	if got := c.EvictUnknown(now.Add(-5 * time.Minute)); len(got) != 1 || got[0] != "c" {
		t.Fatalf("EvictUnknown(stale) = %v", got)
	}
	if got := c.EvictUnknown(time.Time{}); len(got) != 1 || got[0] != "d" {
		t.Fatalf("EvictUnknown(all) = %v", got)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Reset left %d entries", c.Len())
	}
}

func TestEvictedHandleSkipsStoreUntilRemembered(t *testing.T) {
	store := newMemStore()
	store.records["ghost"] = storage.Record{Handle: "ghost", LastChecked: 1}
	var missed []string
	c := New(Config{Store: store, OnMiss: func(h string) { missed = append(missed, h) }})

	if e, ok := c.Resolve(context.Background(), "ghost"); !ok || e.Known() {
		t.Fatalf("first Resolve = %+v, %v", e, ok)
	}
	if got := c.EvictUnknown(time.Time{}); len(got) != 1 || got[0] != "ghost" {
		t.Fatalf("EvictUnknown = %v", got)
	}
	if !c.Refetching("@Ghost") {
		t.Fatalf("evicted handle not marked")
	}

	if _, ok := c.Resolve(context.Background(), "ghost"); ok {
		t.Fatalf("Resolve read the old record back")
	}
	if n := atomic.LoadInt32(&store.gets); n != 1 {
		t.Fatalf("store read %d times, want 1", n)
	}
	if len(missed) != 1 || missed[0] != "ghost" {
		t.Fatalf("missed = %v", missed)
	}

	c.Remember("ghost", strPtr("Peru"))
	if c.Refetching("ghost") {
		t.Fatalf("Remember did not clear the mark")
	}
	if e, ok := c.Resolve(context.Background(), "ghost"); !ok || e.Code != "PE" {
		t.Fatalf("Resolve after Remember = %+v, %v", e, ok)
	}

	c.Evict("ghost")
	c.Unmark("ghost")
	if e, ok := c.Resolve(context.Background(), "ghost"); !ok || e.Known() {
		t.Fatalf("Resolve after Unmark should read the store: %+v, %v", e, ok)
	}
	if n := atomic.LoadInt32(&store.gets); n != 2 {
		t.Fatalf("store read %d times, want 2", n)
	}
}
