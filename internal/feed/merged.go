package feed

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aistocker/quotehub/internal/merge"
	"github.com/aistocker/quotehub/internal/quote"
)

// FetchMerged asks every eligible provider for the instrument concurrently
// and combines the answers field by field. Providers in cooldown are
// skipped; per-provider failures only shrink the candidate set. Failing
// providers take a failure mark just as in rotation, but a single slow or
// broken provider never fails the merged view as long as one candidate
// arrives.
func (s *Service) FetchMerged(ctx context.Context, code string) (*quote.Quote, merge.Stats, error) {
	if !quote.ValidCode(code) {
		return nil, merge.Stats{}, &InvalidCodeError{Code: code}
	}

	var (
		mu      sync.Mutex
		groups  []merge.Group
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for idx := range s.providers {
		if !s.eligible(idx) {
			continue
		}
		g.Go(func() error {
			q, err := s.attempt(gctx, idx, code)
			if err != nil {
				s.recordFailure(idx)
				slog.Debug("merge candidate failed",
					"source", s.providers[idx].Source, "code", code, "error", err)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			s.clearFailures(idx)
			mu.Lock()
			groups = append(groups, merge.Group{
				Source: s.providers[idx].Source,
				Quotes: []quote.Quote{*q},
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(groups) == 0 {
		return nil, merge.Stats{}, &AllSourcesExhaustedError{Code: code, LastErr: lastErr}
	}

	merged, stats := s.merger().Merge(groups)
	q, ok := merged[code]
	if !ok {
		return nil, stats, &AllSourcesExhaustedError{Code: code, LastErr: lastErr}
	}

	s.storeCache(ctx, code, &q)
	return &q, stats, nil
}

// merger builds an engine aligned with the pool's configured weights and
// order.
func (s *Service) merger() *merge.Engine {
	weights := make(map[quote.Source]float64, len(s.providers))
	order := make([]quote.Source, 0, len(s.providers))
	for _, p := range s.providers {
		weights[p.Source] = p.Weight
		order = append(order, p.Source)
	}
	return merge.New(merge.WithSourceWeights(weights), merge.WithPriority(order))
}
