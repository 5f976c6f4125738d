// Package sqlite implements the cache backend over a local SQLite file, for
// deployments that want cache fallback to survive restarts without running
// a separate store. Expired rows are deleted lazily on read.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register sqlite driver

	"github.com/aistocker/quotehub/internal/cache"
)

//go:embed schema.sql
var schema string

type Backend struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory databases are per-connection; limit to one connection so
	// the schema and all queries see the same data.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Backend{db: db, now: time.Now}, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `SELECT value, expires_at FROM cache_entries WHERE key = ?`

	var value []byte
	var expiresAt int64
	err := b.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	if expiresAt > 0 && b.now().UnixMilli() >= expiresAt {
		_, _ = b.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = b.now().Add(ttl).UnixMilli()
	}

	const query = `INSERT INTO cache_entries (key, value, expires_at, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, created_at = excluded.created_at`

	if _, err := b.db.ExecContext(ctx, query, key, value, expiresAt, b.now().Format(time.RFC3339)); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", cache.ErrUnavailable, op, err)
}
