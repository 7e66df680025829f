package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func strPtr(s string) *string { return &s }

func openSQLite(t *testing.T) Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "flagged.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openMiniRedis(t *testing.T) Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewRedis(client, "test")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func engines() map[string]func(*testing.T) Store {
	return map[string]func(*testing.T) Store{
		"sqlite": openSQLite,
		"redis":  openMiniRedis,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range engines() {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			if _, ok, err := s.Get(ctx, "nobody"); err != nil || ok {
				t.Fatalf("Get missing = ok %v err %v", ok, err)
			}

			if err := s.Put(ctx, Record{Handle: "alice", Country: strPtr("India"), LastChecked: 10}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, Record{Handle: "bob", LastChecked: 20}); err != nil {
				t.Fatalf("Put nil country: %v", err)
			}
			if err := s.Put(ctx, Record{Handle: "carol", Country: strPtr(""), LastChecked: 30}); err != nil {
				t.Fatalf("Put empty country: %v", err)
			}

			rec, ok, err := s.Get(ctx, "alice")
			if err != nil || !ok {
				t.Fatalf("Get alice: ok %v err %v", ok, err)
			}
			if rec.Country == nil || *rec.Country != "India" || rec.LastChecked != 10 {
				t.Fatalf("unexpected record %+v", rec)
			}
			for _, h := range []string{"bob", "carol"} {
				rec, ok, err = s.Get(ctx, h)
				if err != nil || !ok || rec.Country != nil {
					t.Fatalf("Get %s = %+v ok %v err %v", h, rec, ok, err)
				}
			}

			// Overwrite replaces the whole record.
			if err := s.Put(ctx, Record{Handle: "alice", LastChecked: 40}); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			rec, _, _ = s.Get(ctx, "alice")
			if rec.Country != nil || rec.LastChecked != 40 {
				t.Fatalf("overwrite left %+v", rec)
			}

			n, err := s.Count(ctx)
			if err != nil || n != 3 {
				t.Fatalf("Count = %d, %v", n, err)
			}

			var seen []string
			if err := s.Iterate(ctx, func(r Record) error {
				seen = append(seen, r.Handle)
				return nil
			}); err != nil {
				t.Fatalf("Iterate: %v", err)
			}
			if strings.Join(seen, ",") != "alice,bob,carol" {
				t.Fatalf("Iterate order = %v", seen)
			}

			stop := errors.New("stop")
			calls := 0
			err = s.Iterate(ctx, func(Record) error { calls++; return stop })
			if !errors.Is(err, stop) || calls != 1 {
				t.Fatalf("Iterate stop: err %v calls %d", err, calls)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if n, _ := s.Count(ctx); n != 0 {
				t.Fatalf("Count after clear = %d", n)
			}
		})
	}
}

func TestStoreRateLimit(t *testing.T) {
	for name, open := range engines() {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			got, err := s.RateLimitedUntil(ctx)
			if err != nil || !got.IsZero() {
				t.Fatalf("initial cooldown = %v, %v", got, err)
			}
			until := time.UnixMilli(1_700_000_300_000)
			if err := s.SetRateLimitedUntil(ctx, until); err != nil {
				t.Fatalf("SetRateLimitedUntil: %v", err)
			}
			got, err = s.RateLimitedUntil(ctx)
			if err != nil || !got.Equal(until) {
				t.Fatalf("cooldown = %v, %v", got, err)
			}
			if err := s.SetRateLimitedUntil(ctx, time.Time{}); err != nil {
				t.Fatalf("clear cooldown: %v", err)
			}
			if got, _ = s.RateLimitedUntil(ctx); !got.IsZero() {
				t.Fatalf("cooldown not cleared: %v", got)
			}
		})
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := openSQLite(t)
	_ = src.Put(ctx, Record{Handle: "alice", Country: strPtr("India"), LastChecked: 100})
	_ = src.Put(ctx, Record{Handle: "bob", LastChecked: 200})

	var buf bytes.Buffer
	n, err := Export(ctx, src, &buf)
	if err != nil || n != 2 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	if !strings.Contains(buf.String(), `"lastChecked": 100`) {
		t.Fatalf("unexpected export document:\n%s", buf.String())
	}

	dst := openMiniRedis(t)
	_ = dst.Put(ctx, Record{Handle: "alice", Country: strPtr("Japan"), LastChecked: 50})
	_ = dst.Put(ctx, Record{Handle: "bob", Country: strPtr("Kenya"), LastChecked: 500})

	res, err := Import(ctx, dst, bytes.NewReader(buf.Bytes()), time.UnixMilli(999))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Added != 0 || res.Updated != 1 || res.Skipped != 1 {
		t.Fatalf("Import result = %+v", res)
	}
	rec, _, _ := dst.Get(ctx, "alice")
	if rec.Country == nil || *rec.Country != "India" {
		t.Fatalf("newer import did not win: %+v", rec)
	}
	rec, _, _ = dst.Get(ctx, "bob")
	if rec.Country == nil || *rec.Country != "Kenya" {
		t.Fatalf("older import overwrote: %+v", rec)
	}

	res, err = Import(ctx, dst, strings.NewReader(`{"carol":{"country":"Peru"},"":{},"dave":null}`), time.UnixMilli(999))
	if err != nil {
		t.Fatalf("Import new: %v", err)
	}
	if res.Added != 1 || res.Skipped != 2 {
		t.Fatalf("Import result = %+v", res)
	}
	rec, _, _ = dst.Get(ctx, "carol")
	if rec.LastChecked != 999 {
		t.Fatalf("missing lastChecked not defaulted: %+v", rec)
	}

	if _, err := Import(ctx, dst, strings.NewReader(`[1,2]`), time.Now()); err == nil {
		t.Fatalf("expected error for non-object document")
	}
}

func TestClearDropsCooldown(t *testing.T) {
	for name, open := range engines() {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			_ = s.Put(ctx, Record{Handle: "alice", Country: strPtr("India"), LastChecked: 1})
			if err := s.SetRateLimitedUntil(ctx, time.UnixMilli(1_700_000_300_000)); err != nil {
				t.Fatalf("SetRateLimitedUntil: %v", err)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if n, _ := s.Count(ctx); n != 0 {
				t.Fatalf("Count after Clear = %d", n)
			}
			got, err := s.RateLimitedUntil(ctx)
			if err != nil || !got.IsZero() {
				t.Fatalf("cooldown after Clear = %v, %v", got, err)
			}
		})
	}
}

func TestImportCanonicalizesHandles(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	_ = s.Put(ctx, Record{Handle: "bob", Country: strPtr("Kenya"), LastChecked: 500})

	doc := `{" @Foo ":{"country":"Peru","lastChecked":10},"@BOB":{"country":"Chile","lastChecked":100},"@":{}}`
	res, err := Import(ctx, s, strings.NewReader(doc), time.UnixMilli(999))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Added != 1 || res.Updated != 0 || res.Skipped != 2 {
		t.Fatalf("Import result = %+v", res)
	}
	rec, ok, _ := s.Get(ctx, "foo")
	if !ok || rec.Handle != "foo" || rec.Country == nil || *rec.Country != "Peru" {
		t.Fatalf("foo = %+v, %v", rec, ok)
	}
	rec, _, _ = s.Get(ctx, "bob")
	if rec.Country == nil || *rec.Country != "Kenya" {
		t.Fatalf("older @BOB overwrote bob: %+v", rec)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestUnavailable(t *testing.T) {
	var s Store = Unavailable{Cause: errors.New("disk gone")}
	ctx := context.Background()
	if _, _, err := s.Get(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get err = %v", err)
	}
	if err := s.Put(ctx, Record{Handle: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Put err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close err = %v", err)
	}
}
