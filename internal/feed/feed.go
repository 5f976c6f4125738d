// Package feed is the rotating-source orchestrator. It owns the provider
// pool, decides per request which provider answers, retries a failing
// provider with exponential backoff before rotating to the next one, puts
// repeat offenders in cooldown, writes successful quotes through to the
// cache backend, and falls back to a sufficiently fresh cache entry when no
// provider can answer.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aistocker/quotehub/internal/cache"
	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

// Fetcher retrieves the raw payload for one instrument from one provider.
// Transport details live behind this interface.
type Fetcher interface {
	Fetch(ctx context.Context, code string) (map[string]any, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, code string) (map[string]any, error)

func (f FetcherFunc) Fetch(ctx context.Context, code string) (map[string]any, error) {
	return f(ctx, code)
}

// InvalidCodeError reports a request for a malformed instrument code. No
// provider is consulted for such a request.
type InvalidCodeError struct {
	Code string
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid instrument code %q", e.Code)
}

// FetchError wraps a transient provider failure. It is absorbed by the
// retry/rotation machinery and only visible to callers through
// AllSourcesExhaustedError.LastErr.
type FetchError struct {
	Source quote.Source
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AllSourcesExhaustedError is the terminal failure for one instrument:
// every provider failed or was cooling down and no usable cache entry
// existed.
type AllSourcesExhaustedError struct {
	Code    string
	LastErr error
}

func (e *AllSourcesExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("all sources exhausted for %s: %v", e.Code, e.LastErr)
	}
	return fmt.Sprintf("all sources exhausted for %s", e.Code)
}

func (e *AllSourcesExhaustedError) Unwrap() error { return e.LastErr }

// Provider is one pool entry: a source id, its static trust weight and the
// fetch collaborator that talks to the upstream.
type Provider struct {
	Source  quote.Source
	Weight  float64
	Fetcher Fetcher
}

// slot is the mutable runtime state of one provider, guarded by Service.mu.
type slot struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

// Result is a successfully answered quote request. Cached marks a record
// served from the cache fallback instead of a live fetch.
type Result struct {
	Quote  quote.Quote `json:"quote"`
	Cached bool        `json:"cached"`
}

// Service orchestrates the provider pool. It is safe for concurrent use;
// the mutex guards only the rotation pointer and the per-provider slots and
// is never held across fetch, normalize or cache I/O.
type Service struct {
	providers []Provider
	registry  *normalizer.Registry
	backend   cache.Backend

	maxRetries       int
	backoffBase      time.Duration
	failureThreshold int
	cooldown         time.Duration
	cacheTTL         time.Duration
	maxStaleness     time.Duration
	cacheTimeout     time.Duration
	workers          int
	keyPrefix        string
	now              func() time.Time

	mu    sync.Mutex
	next  int
	slots []slot
}

type Option func(*Service)

// WithMaxRetries sets how many times the same provider is retried after its
// first failed attempt, before rotation moves on.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithBackoffBase sets the first retry delay; each further retry doubles it.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Service) { s.backoffBase = d }
}

// WithFailureThreshold sets the consecutive-failure count that sends a
// provider into cooldown.
func WithFailureThreshold(n int) Option {
	return func(s *Service) { s.failureThreshold = n }
}

// WithCooldown sets how long a provider is skipped after hitting the
// failure threshold.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithCacheTTL sets the TTL for write-through cache entries.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) { s.cacheTTL = d }
}

// WithMaxCacheStaleness sets the oldest cache entry the fallback may serve.
func WithMaxCacheStaleness(d time.Duration) Option {
	return func(s *Service) { s.maxStaleness = d }
}

// WithCacheTimeout bounds each cache backend call so an unreachable store
// cannot stall the rotation path.
func WithCacheTimeout(d time.Duration) Option {
	return func(s *Service) { s.cacheTimeout = d }
}

// WithWorkers sets the batch fan-out concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// WithKeyPrefix sets the cache key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) { s.keyPrefix = prefix }
}

func NewService(providers []Provider, registry *normalizer.Registry, backend cache.Backend, opts ...Option) *Service {
	s := &Service{
		providers:        providers,
		registry:         registry,
		backend:          backend,
		maxRetries:       2,
		backoffBase:      500 * time.Millisecond,
		failureThreshold: 3,
		cooldown:         5 * time.Minute,
		cacheTTL:         10 * time.Minute,
		maxStaleness:     10 * time.Minute,
		cacheTimeout:     2 * time.Second,
		workers:          5,
		keyPrefix:        "quotehub",
		now:              time.Now,
		slots:            make([]slot, len(providers)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProviderStatus is a snapshot of one provider's runtime state.
type ProviderStatus struct {
	Source        quote.Source `json:"source"`
	Weight        float64      `json:"weight"`
	Failures      int          `json:"failures"`
	CoolingDown   bool         `json:"coolingDown"`
	CooldownUntil time.Time    `json:"cooldownUntil,omitzero"`
	LastFailure   time.Time    `json:"lastFailure,omitzero"`
}

// Status reports the pool state and the provider the next request starts
// with.
type Status struct {
	Providers []ProviderStatus `json:"providers"`
	Next      quote.Source     `json:"next"`
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	st := Status{Providers: make([]ProviderStatus, len(s.providers))}
	for i, p := range s.providers {
		st.Providers[i] = ProviderStatus{
			Source:        p.Source,
			Weight:        p.Weight,
			Failures:      s.slots[i].failures,
			CoolingDown:   now.Before(s.slots[i].cooldownUntil),
			CooldownUntil: s.slots[i].cooldownUntil,
			LastFailure:   s.slots[i].lastFailure,
		}
	}
	if len(s.providers) > 0 {
		st.Next = s.providers[s.next%len(s.providers)].Source
	}
	return st
}
