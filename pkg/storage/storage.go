package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const metaRateLimitedUntil = "rate_limited_until"

// DB is the sqlite-backed Store.
type DB struct {
	sql *sql.DB
}

var _ Store = (*DB)(nil)

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS accounts (
  handle       TEXT PRIMARY KEY,
  country      TEXT,
  last_checked INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_checked ON accounts(last_checked);
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func (d *DB) Get(ctx context.Context, handle string) (Record, bool, error) {
	var (
		rec     Record
		country sql.NullString
	)
	err := d.sql.QueryRowContext(ctx, "SELECT handle, country, last_checked FROM accounts WHERE handle = ?", handle).
		Scan(&rec.Handle, &country, &rec.LastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	if country.Valid {
		rec.Country = &country.String
	}
	return rec, true, nil
}

func (d *DB) Put(ctx context.Context, rec Record) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO accounts(handle, country, last_checked) VALUES(?,?,?)
ON CONFLICT(handle) DO UPDATE SET country = excluded.country, last_checked = excluded.last_checked`,
		rec.Handle, nullIfEmpty(rec.Country), rec.LastChecked)
	return err
}

func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n)
	return n, err
}

// Clear deletes every account and the rate-limit cooldown.
func (d *DB) Clear(ctx context.Context) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM meta WHERE key = ?", metaRateLimitedUntil); err != nil {
		return err
	}
	return tx.Commit()
}

// Iterate visits every record in handle order. Returning an error from fn
// stops the walk and is passed back to the caller.
func (d *DB) Iterate(ctx context.Context, fn func(Record) error) error {
	rows, err := d.sql.QueryContext(ctx, "SELECT handle, country, last_checked FROM accounts ORDER BY handle")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec     Record
			country sql.NullString
		)
		if err := rows.Scan(&rec.Handle, &country, &rec.LastChecked); err != nil {
			return err
		}
		if country.Valid {
			c := country.String
			rec.Country = &c
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (d *DB) RateLimitedUntil(ctx context.Context) (time.Time, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaRateLimitedUntil).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseMillis(v)
}

func (d *DB) SetRateLimitedUntil(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		_, err := d.sql.ExecContext(ctx, "DELETE FROM meta WHERE key = ?", metaRateLimitedUntil)
		return err
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?,?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaRateLimitedUntil, strconv.FormatInt(t.UnixMilli(), 10))
	return err
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if ms <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func nullIfEmpty(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
