package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transients is a cache.Store backed by the transients table.
type Transients struct {
	db  *sql.DB
	now func() time.Time
}

// Transients returns the database's expiring key/value store.
func (d *DB) Transients() *Transients {
	return &Transients{db: d.db, now: time.Now}
}

func (t *Transients) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value   string
		expires int64
	)
	err := t.db.QueryRowContext(ctx, `SELECT value, expires FROM transients WHERE key = ?`, key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get transient %s: %w", key, err)
	}
	if expires != 0 && t.now().UnixMilli() >= expires {
		if _, err := t.db.ExecContext(ctx, `DELETE FROM transients WHERE key = ? AND expires = ?`, key, expires); err != nil {
			return "", false, fmt.Errorf("expire transient %s: %w", key, err)
		}
		return "", false, nil
	}
	return value, true, nil
}

func (t *Transients) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = t.now().Add(ttl).UnixMilli()
	}
	if _, err := t.db.ExecContext(ctx, `INSERT OR REPLACE INTO transients (key, value, expires) VALUES (?, ?, ?)`, key, value, expires); err != nil {
		return fmt.Errorf("set transient %s: %w", key, err)
	}
	return nil
}

func (t *Transients) Delete(ctx context.Context, key string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM transients WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete transient %s: %w", key, err)
	}
	return nil
}

// Purge drops every transient.
func (t *Transients) Purge(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM transients`); err != nil {
		return fmt.Errorf("purge transients: %w", err)
	}
	return nil
}

// PurgeExpired drops expired transients and reports how many went.
func (t *Transients) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM transients WHERE expires != 0 AND expires <= ?`, t.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired transients: %w", err)
	}
	return res.RowsAffected()
}
