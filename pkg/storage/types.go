package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by every operation of a store that could not be
// opened. Callers treat it like any other store failure.
var ErrUnavailable = errors.New("storage: store unavailable")

// Record is one persisted lookup result. Country is nil when the account
// reports no location. LastChecked is in Unix milliseconds.
type Record struct {
	Handle      string  `json:"handle"`
	Country     *string `json:"country"`
	LastChecked int64   `json:"lastChecked"`
}

// CheckedAt returns LastChecked as a time.
func (r Record) CheckedAt() time.Time {
	return time.UnixMilli(r.LastChecked)
}

// Store is the persistent key-value service behind the resolution cache.
// Keys are canonical handles. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, handle string) (Record, bool, error)
	Put(ctx context.Context, rec Record) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Iterate(ctx context.Context, fn func(Record) error) error

	// RateLimitedUntil returns the persisted cooldown, zero when none is set.
	RateLimitedUntil(ctx context.Context) (time.Time, error)
	// SetRateLimitedUntil persists the cooldown; a zero time clears it.
	SetRateLimitedUntil(ctx context.Context, t time.Time) error

	Close() error
}
