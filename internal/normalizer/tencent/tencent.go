// Package tencent normalizes Tencent finance payloads. Tencent data arrives
// either in the f-code convention or already keyed by name (code, price,
// sector, ...), so every accessor falls back through both. It is the only
// source that reliably carries a sector classification.
package tencent

import (
	"strconv"
	"time"

	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

func (n *Normalizer) Source() quote.Source { return quote.SourceTencent }

func (n *Normalizer) Normalize(raw map[string]any) (*quote.Quote, error) {
	code, err := normalizer.ExtractCode(n.Source(), raw)
	if err != nil {
		return nil, err
	}

	market := marketField(raw)
	if market == "" {
		market = quote.DetectMarket(code)
	}
	board := normalizer.StringField(raw, "market_board", "board")
	if board == "" {
		board = quote.DetectBoard(code)
	}

	return &quote.Quote{
		Code:          code,
		Name:          normalizer.ExtractName(raw),
		Price:         normalizer.FloatField(raw, "f2", "price"),
		Open:          normalizer.FloatField(raw, "f17", "open"),
		High:          normalizer.FloatField(raw, "f15", "high", "f4"),
		Low:           normalizer.FloatField(raw, "f16", "low", "f34"),
		PreClose:      normalizer.FloatField(raw, "f18", "pre_close"),
		ChangeAmount:  normalizer.FloatField(raw, "change_amount"),
		ChangePercent: normalizer.FloatField(raw, "f3", "change_percent"),
		Volume:        normalizer.IntField(raw, "f5", "volume"),
		Amount:        normalizer.FloatField(raw, "f6", "amount"),
		TurnoverRate:  normalizer.FloatField(raw, "f8", "turnover_rate"),
		MarketCap:     normalizer.FloatField(raw, "f20", "market_cap"),
		TotalCap:      normalizer.FloatField(raw, "f21", "total_cap"),
		Market:        market,
		Board:         board,
		Sector:        normalizer.StringField(raw, "sector", "industry"),
		Source:        n.Source(),
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// marketField reads an explicit market hint. Tencent encodes the venue
// either as a string ("SH"/"SZ") or numerically (0 Shenzhen, 1 Shanghai).
func marketField(raw map[string]any) quote.Market {
	s := normalizer.StringField(raw, "market")
	if s == "" {
		if f := normalizer.FloatField(raw, "market"); f != nil {
			s = strconv.FormatInt(int64(*f), 10)
		}
	}
	switch s {
	case "":
		return ""
	case "0":
		return quote.MarketShenzhen
	case "1":
		return quote.MarketShanghai
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n == 0 {
			return quote.MarketShenzhen
		}
		return quote.MarketShanghai
	}
	return quote.Market(s)
}
