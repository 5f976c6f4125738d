// Package cache defines the pluggable key-value backend the orchestrator
// writes quotes through and falls back to. A miss is never an error; only a
// transport-level failure (store unreachable) surfaces, wrapped in
// ErrUnavailable, and callers treat that as "no cache for this call".
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks transport-level backend failures. Implementations
// wrap it so callers can test with errors.Is.
var ErrUnavailable = errors.New("cache backend unavailable")

// Backend is the capability interface over a key-value store with TTLs.
type Backend interface {
	// Get returns the value for key, with ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key for ttl. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Exists reports whether key holds an unexpired value.
	Exists(ctx context.Context, key string) (bool, error)
}
