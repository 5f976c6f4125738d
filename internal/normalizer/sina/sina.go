// Package sina normalizes Sina finance payloads. Sina deviates from the
// usual f-code layout: f4 is the high and f15 the open.
package sina

import (
	"time"

	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

func (n *Normalizer) Source() quote.Source { return quote.SourceSina }

func (n *Normalizer) Normalize(raw map[string]any) (*quote.Quote, error) {
	code, err := normalizer.ExtractCode(n.Source(), raw)
	if err != nil {
		return nil, err
	}
	return &quote.Quote{
		Code:          code,
		Name:          normalizer.ExtractName(raw),
		Price:         normalizer.FloatField(raw, "f2"),
		Open:          normalizer.FloatField(raw, "f15"),
		High:          normalizer.FloatField(raw, "f4"),
		Low:           normalizer.FloatField(raw, "f16"),
		PreClose:      normalizer.FloatField(raw, "f18"),
		ChangePercent: normalizer.FloatField(raw, "f3"),
		Volume:        normalizer.IntField(raw, "f5"),
		Amount:        normalizer.FloatField(raw, "f6"),
		TurnoverRate:  normalizer.FloatField(raw, "f8"),
		Market:        quote.DetectMarket(code),
		Board:         quote.DetectBoard(code),
		Source:        n.Source(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}
