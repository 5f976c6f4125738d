// Package eastmoney normalizes Eastmoney list-API payloads, which use the
// industry-convention f-codes: f12 code, f14 name, f2 price, f3 change
// percent, f4 change amount, f5 volume, f6 amount, f8 turnover rate, f15/f16
// high/low, f17 open, f18 previous close, f20/f21 float/total market cap.
package eastmoney

import (
	"time"

	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

func (n *Normalizer) Source() quote.Source { return quote.SourceEastmoney }

func (n *Normalizer) Normalize(raw map[string]any) (*quote.Quote, error) {
	code, err := normalizer.ExtractCode(n.Source(), raw)
	if err != nil {
		return nil, err
	}
	return &quote.Quote{
		Code:          code,
		Name:          normalizer.ExtractName(raw),
		Price:         normalizer.FloatField(raw, "f2"),
		ChangePercent: normalizer.FloatField(raw, "f3"),
		ChangeAmount:  normalizer.FloatField(raw, "f4"),
		Volume:        normalizer.IntField(raw, "f5"),
		Amount:        normalizer.FloatField(raw, "f6"),
		TurnoverRate:  normalizer.FloatField(raw, "f8"),
		High:          normalizer.FloatField(raw, "f15"),
		Low:           normalizer.FloatField(raw, "f16"),
		Open:          normalizer.FloatField(raw, "f17"),
		PreClose:      normalizer.FloatField(raw, "f18"),
		MarketCap:     normalizer.FloatField(raw, "f20"),
		TotalCap:      normalizer.FloatField(raw, "f21"),
		Market:        quote.DetectMarket(code),
		Board:         quote.DetectBoard(code),
		Source:        n.Source(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}
