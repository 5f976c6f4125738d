// Package normalizer translates provider-specific raw payloads into the
// canonical quote record. One Normalizer exists per provider; a Registry
// resolves them by source id. Registration happens once at startup.
package normalizer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aistocker/quotehub/internal/quote"
)

// Normalizer converts one raw provider payload into a canonical quote.
// Implementations are pure and stateless.
type Normalizer interface {
	Source() quote.Source
	Normalize(raw map[string]any) (*quote.Quote, error)
}

// NormalizationError reports a payload that could not be translated: missing
// identity fields or a structurally malformed document. It is local to one
// record and never aborts a batch.
type NormalizationError struct {
	Source quote.Source
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s payload: %s", e.Source, e.Reason)
}

// UnknownProviderError reports a resolve for a source that was never
// registered. It is fatal for the call and not retried.
type UnknownProviderError struct {
	Source quote.Source
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Source)
}

// Registry maps source ids to their normalizers. Register is expected to
// complete before fetch traffic starts; concurrent Resolve is safe.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[quote.Source]Normalizer
}

func NewRegistry() *Registry {
	return &Registry{
		normalizers: make(map[quote.Source]Normalizer),
	}
}

func (r *Registry) Register(n Normalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalizers[n.Source()] = n
}

func (r *Registry) Resolve(source quote.Source) (Normalizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.normalizers[source]
	if !ok {
		return nil, &UnknownProviderError{Source: source}
	}
	return n, nil
}

// Sources returns the registered source ids in lexical order.
func (r *Registry) Sources() []quote.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]quote.Source, 0, len(r.normalizers))
	for src := range r.normalizers {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// Normalize resolves the source's normalizer and translates one payload.
func (r *Registry) Normalize(source quote.Source, raw map[string]any) (*quote.Quote, error) {
	n, err := r.Resolve(source)
	if err != nil {
		return nil, err
	}
	return Normalize(n, raw)
}

// Normalize translates one payload and initializes the quality score of a
// successful record to its field completeness. The score is refined later if
// the record passes through the merge engine.
func Normalize(n Normalizer, raw map[string]any) (*quote.Quote, error) {
	q, err := n.Normalize(raw)
	if err != nil {
		return nil, err
	}
	q.QualityScore = q.Completeness()
	return q, nil
}

// Result is one outcome of a batch normalization: either a quote or the
// error for the corresponding input.
type Result struct {
	Quote *quote.Quote
	Err   error
}

// NormalizeBatch translates payloads one by one, preserving input order. A
// malformed payload produces an error entry in the result and does not stop
// the rest of the batch.
func NormalizeBatch(n Normalizer, raws []map[string]any) []Result {
	results := make([]Result, len(raws))
	failed := 0
	for i, raw := range raws {
		q, err := Normalize(n, raw)
		if err != nil {
			results[i] = Result{Err: err}
			failed++
			continue
		}
		results[i] = Result{Quote: q}
	}
	if failed > 0 {
		slog.Warn("batch normalize finished with failures",
			"source", n.Source(), "total", len(raws), "failed", failed)
	}
	return results
}
