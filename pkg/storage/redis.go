package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Store keeping every record as one field of a single hash, so
// Count and Clear stay O(1) commands.
type Redis struct {
	client *goredis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. prefix namespaces both keys.
func NewRedis(client *goredis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "flagged"
	}
	return &Redis{client: client, prefix: prefix}
}

// OpenRedis dials addr and verifies the connection with PING.
func OpenRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedis(client, prefix), nil
}

func (r *Redis) accountsKey() string { return r.prefix + ":accounts" }
func (r *Redis) metaKey() string     { return r.prefix + ":" + metaRateLimitedUntil }

func (r *Redis) Get(ctx context.Context, handle string) (Record, bool, error) {
	raw, err := r.client.HGet(ctx, r.accountsKey(), handle).Result()
	if err == goredis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get account %s: %w", handle, err)
	}
	rec, err := decodeRecord(handle, raw)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *Redis) Put(ctx context.Context, rec Record) error {
	if rec.Country != nil && *rec.Country == "" {
		rec.Country = nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.accountsKey(), rec.Handle, b).Err(); err != nil {
		return fmt.Errorf("put account %s: %w", rec.Handle, err)
	}
	return nil
}

func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.accountsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return int(n), nil
}

// Clear deletes every account and the rate-limit cooldown.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.accountsKey(), r.metaKey()).Err()
}

// Iterate loads the hash with HGETALL and visits records in handle order.
func (r *Redis) Iterate(ctx context.Context, fn func(Record) error) error {
	all, err := r.client.HGetAll(ctx, r.accountsKey()).Result()
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	handles := make([]string, 0, len(all))
	for h := range all {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	for _, h := range handles {
		rec, err := decodeRecord(h, all[h])
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) RateLimitedUntil(ctx context.Context) (time.Time, error) {
	v, err := r.client.Get(ctx, r.metaKey()).Result()
	if err == goredis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get rate limit: %w", err)
	}
	return parseMillis(v)
}

func (r *Redis) SetRateLimitedUntil(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return r.client.Del(ctx, r.metaKey()).Err()
	}
	return r.client.Set(ctx, r.metaKey(), strconv.FormatInt(t.UnixMilli(), 10), 0).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func decodeRecord(handle, raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode account %s: %w", handle, err)
	}
	rec.Handle = handle
	return rec, nil
}
