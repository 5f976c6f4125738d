package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-memory reference backend. Expired entries are evicted
// lazily on access and on writes once the optional size cap is exceeded.
type Memory struct {
	maxEntries int
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

type MemoryOption func(*Memory)

// WithMaxEntries caps the number of stored entries; 0 means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) { m.maxEntries = n }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	// Copy so a caller mutating the returned slice cannot corrupt the
	// stored entry for later readers.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		m.evictLocked()
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// evictLocked removes expired entries first, then arbitrary ones until the
// cap is respected again.
func (m *Memory) evictLocked() {
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
		}
	}
	for k := range m.entries {
		if len(m.entries) <= m.maxEntries {
			break
		}
		delete(m.entries, k)
	}
}

func (m *Memory) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}
