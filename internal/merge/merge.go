// Package merge combines quote candidates from multiple providers into one
// record per instrument. Selection is per field: for every field the value
// comes from the candidate with the highest effective weight, where
// effective weight is the source trust weight scaled by the candidate's
// field completeness. The merged record carries a provenance-aware quality
// score blended from source weight, completeness and freshness.
package merge

import (
	"sort"
	"time"

	"github.com/aistocker/quotehub/internal/quote"
)

// fallbackWeight applies to sources missing from the weight table.
const fallbackWeight = 0.5

// Blend holds the quality-score factor weights. The three values must sum
// to 1.
type Blend struct {
	Source       float64
	Completeness float64
	Freshness    float64
}

// DefaultBlend weighs source trust and completeness at 40% each and
// freshness at 20%.
func DefaultBlend() Blend {
	return Blend{Source: 0.4, Completeness: 0.4, Freshness: 0.2}
}

// DefaultStalenessHorizon is the age at which freshness decays to zero,
// roughly one trading session.
const DefaultStalenessHorizon = 4 * time.Hour

// Group is one provider's batch of candidate records.
type Group struct {
	Source quote.Source
	Quotes []quote.Quote
}

// Stats summarizes one merge call.
type Stats struct {
	TotalRecords int                       `json:"totalRecords"`
	UniqueCodes  int                       `json:"uniqueCodes"`
	Contributors map[string][]quote.Source `json:"contributors"`
	Dropped      int                       `json:"dropped"`
	Rejected     []string                  `json:"rejected,omitempty"`
}

// Engine merges candidate groups under a fixed configuration. The zero
// configuration (via New) uses the default source weights, priority order,
// blend and staleness horizon.
type Engine struct {
	weights  map[quote.Source]float64
	priority map[quote.Source]int
	blend    Blend
	horizon  time.Duration
	now      func() time.Time
}

type Option func(*Engine)

// WithSourceWeights replaces the full source weight table.
func WithSourceWeights(weights map[quote.Source]float64) Option {
	return func(e *Engine) {
		e.weights = make(map[quote.Source]float64, len(weights))
		for s, w := range weights {
			e.weights[s] = w
		}
	}
}

// WithSourceWeight overrides the weight of a single source.
func WithSourceWeight(source quote.Source, weight float64) Option {
	return func(e *Engine) { e.weights[source] = weight }
}

// WithPriority sets the provider order used as the final deterministic
// tie-break when effective weights and timestamps are both equal.
func WithPriority(order []quote.Source) Option {
	return func(e *Engine) {
		e.priority = make(map[quote.Source]int, len(order))
		for i, s := range order {
			e.priority[s] = i
		}
	}
}

// WithBlend sets the quality-score factor weights.
func WithBlend(b Blend) Option {
	return func(e *Engine) { e.blend = b }
}

// WithStalenessHorizon sets the age at which freshness reaches zero.
func WithStalenessHorizon(d time.Duration) Option {
	return func(e *Engine) { e.horizon = d }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		weights: quote.DefaultSourceWeights(),
		blend:   DefaultBlend(),
		horizon: DefaultStalenessHorizon,
		now:     time.Now,
	}
	WithPriority(quote.Sources())(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// candidate is a valid input record with its precomputed effective weight.
type candidate struct {
	q   quote.Quote
	eff float64
}

// Merge buckets all candidates by instrument code and merges each bucket
// independently. Invalid candidates are dropped silently and counted. The
// output map and stats are deterministic for fixed inputs and
// configuration.
func (e *Engine) Merge(groups []Group) (map[string]quote.Quote, Stats) {
	stats := Stats{Contributors: make(map[string][]quote.Source)}

	buckets := make(map[string][]candidate)
	rejected := make(map[string]bool)
	for _, g := range groups {
		for i := range g.Quotes {
			q := g.Quotes[i]
			stats.TotalRecords++
			if !q.IsValid() {
				stats.Dropped++
				if q.Code != "" {
					rejected[q.Code] = true
				}
				continue
			}
			buckets[q.Code] = append(buckets[q.Code], candidate{
				q:   q,
				eff: e.weight(q.Source) * q.Completeness(),
			})
		}
	}

	codes := make([]string, 0, len(buckets))
	for code := range buckets {
		codes = append(codes, code)
		delete(rejected, code)
	}
	sort.Strings(codes)

	merged := make(map[string]quote.Quote, len(codes))
	for _, code := range codes {
		m, contributors := e.mergeBucket(code, buckets[code])
		merged[code] = m
		stats.Contributors[code] = contributors
	}
	stats.UniqueCodes = len(merged)

	for code := range rejected {
		stats.Rejected = append(stats.Rejected, code)
	}
	sort.Strings(stats.Rejected)

	return merged, stats
}

// mergeBucket merges the candidates for one code. Candidates are ranked
// once — effective weight descending, then newest fetchedAt, then configured
// priority order, then source id — and every field takes its value from the
// first ranked candidate that has it.
func (e *Engine) mergeBucket(code string, cands []candidate) (quote.Quote, []quote.Source) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.eff != b.eff {
			return a.eff > b.eff
		}
		if !a.q.FetchedAt.Equal(b.q.FetchedAt) {
			return a.q.FetchedAt.After(b.q.FetchedAt)
		}
		if pa, pb := e.rank(a.q.Source), e.rank(b.q.Source); pa != pb {
			return pa < pb
		}
		return a.q.Source < b.q.Source
	})

	best := cands[0]
	m := quote.Quote{
		Code:   code,
		Source: best.q.Source,
	}

	var winEff []float64
	contributed := make(map[quote.Source]bool)
	win := func(c candidate) {
		winEff = append(winEff, c.eff)
		contributed[c.q.Source] = true
	}

	for _, f := range stringFields {
		for _, c := range cands {
			if v := f.get(&c.q); v != "" {
				f.set(&m, v)
				win(c)
				break
			}
		}
	}
	for _, f := range floatFields {
		for _, c := range cands {
			if v := f.get(&c.q); v != nil {
				f.set(&m, quote.Float(*v))
				win(c)
				break
			}
		}
	}
	for _, c := range cands {
		if c.q.Volume != nil {
			m.Volume = quote.Int(*c.q.Volume)
			win(c)
			break
		}
	}

	var newest time.Time
	for src := range contributed {
		for _, c := range cands {
			if c.q.Source == src && c.q.FetchedAt.After(newest) {
				newest = c.q.FetchedAt
			}
		}
	}
	m.FetchedAt = newest
	m.QualityScore = e.score(&m, winEff, newest)

	contributors := make([]quote.Source, 0, len(contributed))
	for src := range contributed {
		contributors = append(contributors, src)
	}
	sort.Slice(contributors, func(i, j int) bool {
		if pi, pj := e.rank(contributors[i]), e.rank(contributors[j]); pi != pj {
			return pi < pj
		}
		return contributors[i] < contributors[j]
	})
	return m, contributors
}

// score blends the average winning effective weight, the merged record's
// completeness and the freshness of the newest contribution, clamped to
// [0,1].
func (e *Engine) score(m *quote.Quote, winEff []float64, newest time.Time) float64 {
	sourceFactor := 0.0
	if len(winEff) > 0 {
		for _, w := range winEff {
			sourceFactor += w
		}
		sourceFactor /= float64(len(winEff))
	}

	freshness := 0.0
	if !newest.IsZero() && e.horizon > 0 {
		age := e.now().Sub(newest)
		if age < 0 {
			age = 0
		}
		if age < e.horizon {
			freshness = 1 - float64(age)/float64(e.horizon)
		}
	}

	s := e.blend.Source*sourceFactor + e.blend.Completeness*m.Completeness() + e.blend.Freshness*freshness
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func (e *Engine) weight(s quote.Source) float64 {
	if w, ok := e.weights[s]; ok {
		return w
	}
	return fallbackWeight
}

func (e *Engine) rank(s quote.Source) int {
	if r, ok := e.priority[s]; ok {
		return r
	}
	return len(e.priority)
}

var stringFields = []struct {
	get func(q *quote.Quote) string
	set func(q *quote.Quote, v string)
}{
	{func(q *quote.Quote) string { return q.Name }, func(q *quote.Quote, v string) { q.Name = v }},
	{func(q *quote.Quote) string { return string(q.Market) }, func(q *quote.Quote, v string) { q.Market = quote.Market(v) }},
	{func(q *quote.Quote) string { return q.Board }, func(q *quote.Quote, v string) { q.Board = v }},
	{func(q *quote.Quote) string { return q.Sector }, func(q *quote.Quote, v string) { q.Sector = v }},
}

var floatFields = []struct {
	get func(q *quote.Quote) *float64
	set func(q *quote.Quote, v *float64)
}{
	{func(q *quote.Quote) *float64 { return q.Price }, func(q *quote.Quote, v *float64) { q.Price = v }},
	{func(q *quote.Quote) *float64 { return q.Open }, func(q *quote.Quote, v *float64) { q.Open = v }},
	{func(q *quote.Quote) *float64 { return q.High }, func(q *quote.Quote, v *float64) { q.High = v }},
	{func(q *quote.Quote) *float64 { return q.Low }, func(q *quote.Quote, v *float64) { q.Low = v }},
	{func(q *quote.Quote) *float64 { return q.PreClose }, func(q *quote.Quote, v *float64) { q.PreClose = v }},
	{func(q *quote.Quote) *float64 { return q.ChangeAmount }, func(q *quote.Quote, v *float64) { q.ChangeAmount = v }},
	{func(q *quote.Quote) *float64 { return q.ChangePercent }, func(q *quote.Quote, v *float64) { q.ChangePercent = v }},
	{func(q *quote.Quote) *float64 { return q.Amount }, func(q *quote.Quote, v *float64) { q.Amount = v }},
	{func(q *quote.Quote) *float64 { return q.TurnoverRate }, func(q *quote.Quote, v *float64) { q.TurnoverRate = v }},
	{func(q *quote.Quote) *float64 { return q.MarketCap }, func(q *quote.Quote, v *float64) { q.MarketCap = v }},
	{func(q *quote.Quote) *float64 { return q.TotalCap }, func(q *quote.Quote, v *float64) { q.TotalCap = v }},
}
