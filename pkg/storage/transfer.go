package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/flagged-dev/flagged/pkg/filter"
)

// ExportEntry is the value side of the export document, which is a JSON
// object keyed by handle.
type ExportEntry struct {
	Handle      string  `json:"handle,omitempty"`
	Country     *string `json:"country"`
	LastChecked int64   `json:"lastChecked"`
}

// Export writes every record as an indented JSON object keyed by handle.
func Export(ctx context.Context, s Store, w io.Writer) (int, error) {
	doc := make(map[string]ExportEntry)
	err := s.Iterate(ctx, func(r Record) error {
		doc[r.Handle] = ExportEntry{Handle: r.Handle, Country: r.Country, LastChecked: r.LastChecked}
		return nil
	})
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, err
	}
	return len(doc), nil
}

// ImportResult counts what a merge changed.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Import merges an export document into s. Keys are canonicalized the way
// lookups are, so "@Foo" lands on "foo". Unknown handles are added;
// existing ones are replaced only when the incoming lastChecked is newer.
// Entries without lastChecked get now.
func Import(ctx context.Context, s Store, r io.Reader, now time.Time) (ImportResult, error) {
	var doc map[string]*ExportEntry
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return ImportResult{}, fmt.Errorf("invalid export document: %w", err)
	}

	var res ImportResult
	for key, e := range doc {
		handle := filter.CanonicalHandle(key)
		if handle == "" || e == nil {
			res.Skipped++
			continue
		}
		rec := Record{Handle: handle, Country: e.Country, LastChecked: e.LastChecked}
		if rec.Country != nil && *rec.Country == "" {
			rec.Country = nil
		}

		existing, ok, err := s.Get(ctx, handle)
		if err != nil {
			return res, err
		}
		switch {
		case !ok:
			if rec.LastChecked == 0 {
				rec.LastChecked = now.UnixMilli()
			}
			res.Added++
		case rec.LastChecked > existing.LastChecked:
			res.Updated++
		default:
			res.Skipped++
			continue
		}
		if err := s.Put(ctx, rec); err != nil {
			return res, err
		}
	}
	return res, nil
}
