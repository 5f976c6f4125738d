// Package tushare normalizes Tushare payloads. Tushare exports tabular rows
// with its own column names (close, pct_chg, vol, circ_mv, total_mv); the
// f-code alternates cover rows that were relayed through other tooling.
package tushare

import (
	"time"

	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

func (n *Normalizer) Source() quote.Source { return quote.SourceTushare }

func (n *Normalizer) Normalize(raw map[string]any) (*quote.Quote, error) {
	code, err := normalizer.ExtractCode(n.Source(), raw)
	if err != nil {
		return nil, err
	}
	return &quote.Quote{
		Code:          code,
		Name:          normalizer.ExtractName(raw),
		Price:         normalizer.FloatField(raw, "f2", "close", "price"),
		Open:          normalizer.FloatField(raw, "f17", "open"),
		High:          normalizer.FloatField(raw, "f15", "high"),
		Low:           normalizer.FloatField(raw, "f16", "low"),
		PreClose:      normalizer.FloatField(raw, "f18", "pre_close"),
		ChangePercent: normalizer.FloatField(raw, "f3", "pct_chg"),
		Volume:        normalizer.IntField(raw, "f5", "vol", "volume"),
		Amount:        normalizer.FloatField(raw, "f6", "amount"),
		TurnoverRate:  normalizer.FloatField(raw, "f8", "turnover_rate"),
		MarketCap:     normalizer.FloatField(raw, "f20", "circ_mv"),
		TotalCap:      normalizer.FloatField(raw, "f21", "total_mv"),
		Market:        quote.DetectMarket(code),
		Board:         quote.DetectBoard(code),
		Sector:        normalizer.StringField(raw, "industry", "sector"),
		Source:        n.Source(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}
