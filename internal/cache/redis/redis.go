// Package redis implements the cache backend over a Redis server. Expiry is
// delegated to Redis TTLs; any transport failure is reported as
// cache.ErrUnavailable so the orchestrator can skip the cache instead of
// failing the request.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aistocker/quotehub/internal/cache"
)

type Backend struct {
	client *redis.Client
}

// New wraps an existing client, e.g. a mock in tests.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// Open connects to addr and verifies the connection with a ping.
func Open(addr, password string) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("redis connection failed", "address", addr, "error", err)
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected", "address", addr)
	return New(client), nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return value, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return n > 0, nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
