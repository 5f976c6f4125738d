package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

// cacheEntry is the stored envelope. CachedAt drives the staleness check on
// fallback reads; the quote's own FetchedAt is preserved untouched.
type cacheEntry struct {
	Quote    quote.Quote `json:"quote"`
	CachedAt time.Time   `json:"cachedAt"`
}

// FetchQuote answers one instrument. The rotation pointer is advanced
// exactly once, at the start of the request; each eligible provider gets
// its initial attempt plus maxRetries retries with doubling backoff before
// rotation moves on. On success the pointer is left after the provider
// that answered, the quote is written through to the cache and returned.
// If the whole pool fails, a cache entry no older than maxStaleness is
// served instead; otherwise the error is AllSourcesExhaustedError.
func (s *Service) FetchQuote(ctx context.Context, code string) (*Result, error) {
	if !quote.ValidCode(code) {
		return nil, &InvalidCodeError{Code: code}
	}
	if len(s.providers) == 0 {
		return nil, &AllSourcesExhaustedError{Code: code}
	}

	start := s.advance()
	var lastErr error

	for offset := range s.providers {
		idx := (start + offset) % len(s.providers)
		if !s.eligible(idx) {
			slog.Debug("provider cooling down, skipped",
				"source", s.providers[idx].Source, "code", code)
			continue
		}

		q, err := s.attempt(ctx, idx, code)
		if err != nil {
			lastErr = err
			s.recordFailure(idx)
			slog.Warn("provider failed",
				"source", s.providers[idx].Source, "code", code, "error", err)
			continue
		}

		s.recordSuccess(idx)
		s.storeCache(ctx, code, q)
		return &Result{Quote: *q}, nil
	}

	if cached, ok := s.loadCache(ctx, code); ok {
		slog.Info("serving cached quote after source exhaustion", "code", code)
		return &Result{Quote: *cached, Cached: true}, nil
	}
	return nil, &AllSourcesExhaustedError{Code: code, LastErr: lastErr}
}

// attempt runs one provider's attempt budget for one code. A fetch failure
// is retried with backoff; a normalization failure counts as a failed
// attempt too, since a provider emitting unusable payloads is as broken as
// one timing out.
func (s *Service) attempt(ctx context.Context, idx int, code string) (*quote.Quote, error) {
	p := s.providers[idx]
	var lastErr error
	for try := 0; try <= s.maxRetries; try++ {
		if try > 0 {
			backoff := s.backoffBase << (try - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := p.Fetcher.Fetch(ctx, code)
		if err != nil {
			lastErr = &FetchError{Source: p.Source, Err: err}
			continue
		}

		n, err := s.registry.Resolve(p.Source)
		if err != nil {
			return nil, err
		}
		q, err := normalizer.Normalize(n, raw)
		if err != nil {
			lastErr = err
			continue
		}
		if !q.IsValid() {
			lastErr = &FetchError{Source: p.Source, Err: fmt.Errorf("invalid quote for %s", code)}
			continue
		}
		return q, nil
	}
	return nil, lastErr
}

// BatchOutcome is one code's entry in a batch result: either the fetched
// quote or the error that exhausted it, never both.
type BatchOutcome struct {
	Result *Result
	Err    error
}

// FetchQuotesBatch fans out over codes with bounded concurrency. Per-code
// failures never fail the batch; every requested code appears in the result
// map, carrying either its quote or its error.
func (s *Service) FetchQuotesBatch(ctx context.Context, codes []string) map[string]BatchOutcome {
	outcomes := make([]BatchOutcome, len(codes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, code := range codes {
		g.Go(func() error {
			r, err := s.FetchQuote(ctx, code)
			if err != nil {
				slog.Warn("batch fetch failed", "code", code, "error", err)
				outcomes[i] = BatchOutcome{Err: err}
				return nil
			}
			outcomes[i] = BatchOutcome{Result: r}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]BatchOutcome, len(codes))
	for i, code := range codes {
		out[code] = outcomes[i]
	}
	return out
}

// advance returns the pool index this request starts at and moves the
// shared pointer to the following provider.
func (s *Service) advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.next % len(s.providers)
	s.next = (start + 1) % len(s.providers)
	return start
}

func (s *Service) eligible(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.now().Before(s.slots[idx].cooldownUntil)
}

func (s *Service) recordFailure(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.slots[idx]
	sl.failures++
	sl.lastFailure = s.now()
	if sl.failures >= s.failureThreshold {
		sl.cooldownUntil = s.now().Add(s.cooldown)
		sl.failures = 0
		slog.Warn("provider entering cooldown",
			"source", s.providers[idx].Source, "until", sl.cooldownUntil)
	}
}

// recordSuccess clears the failure streak and parks the pointer right
// after the provider that answered, so the next request starts there.
func (s *Service) recordSuccess(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[idx].failures = 0
	s.slots[idx].cooldownUntil = time.Time{}
	s.next = (idx + 1) % len(s.providers)
}

// clearFailures resets a slot without touching the rotation pointer.
func (s *Service) clearFailures(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[idx].failures = 0
	s.slots[idx].cooldownUntil = time.Time{}
}

func (s *Service) cacheKey(code string) string {
	return s.keyPrefix + ":quote:" + code
}

// storeCache writes through on success. Backend failures are logged and
// swallowed; the live quote is already in hand.
func (s *Service) storeCache(ctx context.Context, code string, q *quote.Quote) {
	if s.backend == nil {
		return
	}
	entry := cacheEntry{Quote: *q, CachedAt: s.now()}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("marshal cache entry", "code", code, "error", err)
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	if err := s.backend.Set(cctx, s.cacheKey(code), data, s.cacheTTL); err != nil {
		slog.Warn("cache write failed", "code", code, "error", err)
	}
}

// loadCache reads the fallback entry and enforces the staleness ceiling.
func (s *Service) loadCache(ctx context.Context, code string) (*quote.Quote, bool) {
	if s.backend == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	data, ok, err := s.backend.Get(cctx, s.cacheKey(code))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("cache read failed", "code", code, "error", err)
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("corrupt cache entry", "code", code, "error", err)
		return nil, false
	}
	if s.maxStaleness > 0 && s.now().Sub(entry.CachedAt) > s.maxStaleness {
		return nil, false
	}
	return &entry.Quote, true
}
