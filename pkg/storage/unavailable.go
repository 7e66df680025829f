package storage

import (
	"context"
	"time"
)

// Unavailable stands in for a store that failed to open. Every call fails
// with ErrUnavailable and the caller keeps working from memory.
type Unavailable struct {
	Cause error
}

var _ Store = Unavailable{}

func (Unavailable) Get(context.Context, string) (Record, bool, error) {
	return Record{}, false, ErrUnavailable
}
func (Unavailable) Put(context.Context, Record) error                   { return ErrUnavailable }
func (Unavailable) Count(context.Context) (int, error)                  { return 0, ErrUnavailable }
func (Unavailable) Clear(context.Context) error                         { return ErrUnavailable }
func (Unavailable) Iterate(context.Context, func(Record) error) error   { return ErrUnavailable }
func (Unavailable) RateLimitedUntil(context.Context) (time.Time, error) { return time.Time{}, ErrUnavailable }
func (Unavailable) SetRateLimitedUntil(context.Context, time.Time) error {
	return ErrUnavailable
}
func (Unavailable) Close() error { return nil }
