// Package quote defines the canonical instrument quote record that every
// upstream source is normalized into. Optional numeric fields are pointers:
// nil means the upstream omitted the field, which is not the same as zero.
package quote

import (
	"strings"
	"time"
)

// Source identifies an upstream quote provider.
type Source string

const (
	SourceEastmoney Source = "eastmoney"
	SourceTencent   Source = "tencent"
	SourceSina      Source = "sina"
	SourceAkshare   Source = "akshare"
	SourceBaostock  Source = "baostock"
	SourceJoinquant Source = "joinquant"
	SourceTushare   Source = "tushare"
)

// Sources returns all known sources in default priority order, most trusted
// first. The ordering doubles as the deterministic tie-break for merging.
func Sources() []Source {
	return []Source{
		SourceTencent,
		SourceEastmoney,
		SourceAkshare,
		SourceBaostock,
		SourceJoinquant,
		SourceSina,
		SourceTushare,
	}
}

// DefaultSourceWeights maps each source to its empirical trust weight.
func DefaultSourceWeights() map[Source]float64 {
	return map[Source]float64{
		SourceTencent:   1.0,
		SourceEastmoney: 0.9,
		SourceAkshare:   0.85,
		SourceBaostock:  0.75,
		SourceSina:      0.70,
		SourceJoinquant: 0.70,
		SourceTushare:   0.65,
	}
}

// Market is the exchange venue an instrument trades on.
type Market string

const (
	MarketShanghai Market = "SH"
	MarketShenzhen Market = "SZ"
	MarketBeijing  Market = "BJ"
)

// Board names derived from the instrument code prefix.
const (
	BoardSTAR    = "STAR"
	BoardChiNext = "ChiNext"
	BoardBSE     = "BSE"
	BoardSHMain  = "SH-A"
	BoardSZMain  = "SZ-A"
)

// Quote is the canonical normalized quote for one instrument from one
// provider, or the output of a multi-provider merge. A Quote is immutable
// once built except for QualityScore, which is derived, never user-supplied.
type Quote struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Market Market `json:"market,omitempty"`
	Board  string `json:"board,omitempty"`
	Sector string `json:"sector,omitempty"`

	Price         *float64 `json:"price,omitempty"`
	Open          *float64 `json:"open,omitempty"`
	High          *float64 `json:"high,omitempty"`
	Low           *float64 `json:"low,omitempty"`
	PreClose      *float64 `json:"preClose,omitempty"`
	ChangeAmount  *float64 `json:"changeAmount,omitempty"`
	ChangePercent *float64 `json:"changePercent,omitempty"`

	Volume       *int64   `json:"volume,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	TurnoverRate *float64 `json:"turnoverRate,omitempty"`
	MarketCap    *float64 `json:"marketCap,omitempty"`
	TotalCap     *float64 `json:"totalCap,omitempty"`

	Source       Source    `json:"source"`
	FetchedAt    time.Time `json:"fetchedAt"`
	QualityScore float64   `json:"qualityScore"`
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for populating optional fields.
func Int(v int64) *int64 { return &v }

// trackedFields is the number of schema fields counted by Completeness:
// name, market, board, sector, the seven price fields and the five
// volume/cap fields. Identity and provenance fields are excluded.
const trackedFields = 16

// Completeness reports how many tracked fields are populated, as a value in
// [0,1]. It is 1.0 exactly when every tracked field is present.
func (q *Quote) Completeness() float64 {
	n := 0
	for _, s := range []string{q.Name, string(q.Market), q.Board, q.Sector} {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	for _, f := range []*float64{
		q.Price, q.Open, q.High, q.Low, q.PreClose,
		q.ChangeAmount, q.ChangePercent,
		q.Amount, q.TurnoverRate, q.MarketCap, q.TotalCap,
	} {
		if f != nil {
			n++
		}
	}
	if q.Volume != nil {
		n++
	}
	return float64(n) / trackedFields
}

// IsValid reports whether the quote is usable as a merge candidate: the code
// has the fixed 6-digit form, the price is present and non-negative, no
// non-negative field carries a negative value, and high >= low when both are
// present. ChangeAmount and ChangePercent may legitimately be negative.
func (q *Quote) IsValid() bool {
	if !ValidCode(q.Code) {
		return false
	}
	if q.Price == nil || *q.Price < 0 {
		return false
	}
	for _, f := range []*float64{q.Open, q.High, q.Low, q.PreClose, q.Amount, q.TurnoverRate, q.MarketCap, q.TotalCap} {
		if f != nil && *f < 0 {
			return false
		}
	}
	if q.Volume != nil && *q.Volume < 0 {
		return false
	}
	if q.High != nil && q.Low != nil && *q.High < *q.Low {
		return false
	}
	return true
}

// IsST reports whether the instrument carries the special-treatment marker.
func (q *Quote) IsST() bool {
	return strings.Contains(strings.ToUpper(q.Name), "ST")
}

// IsChiNext reports whether the code belongs to the ChiNext board.
func (q *Quote) IsChiNext() bool {
	return strings.HasPrefix(q.Code, "300") || strings.HasPrefix(q.Code, "301")
}

// IsSTAR reports whether the code belongs to the STAR board.
func (q *Quote) IsSTAR() bool {
	return strings.HasPrefix(q.Code, "688") || strings.HasPrefix(q.Code, "689")
}

// Suspended reports whether the instrument looks halted: price and volume
// are both reported and both zero.
func (q *Quote) Suspended() bool {
	return q.Price != nil && *q.Price == 0 && q.Volume != nil && *q.Volume == 0
}

// Clone returns a deep copy: mutating the copy's optional fields never
// affects the original record.
func (q *Quote) Clone() Quote {
	out := *q
	for _, p := range []struct {
		src *float64
		dst **float64
	}{
		{q.Price, &out.Price}, {q.Open, &out.Open}, {q.High, &out.High},
		{q.Low, &out.Low}, {q.PreClose, &out.PreClose},
		{q.ChangeAmount, &out.ChangeAmount}, {q.ChangePercent, &out.ChangePercent},
		{q.Amount, &out.Amount}, {q.TurnoverRate, &out.TurnoverRate},
		{q.MarketCap, &out.MarketCap}, {q.TotalCap, &out.TotalCap},
	} {
		if p.src != nil {
			v := *p.src
			*p.dst = &v
		}
	}
	if q.Volume != nil {
		v := *q.Volume
		out.Volume = &v
	}
	return out
}

// ValidCode reports whether code has the fixed 6-digit instrument form.
func ValidCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// DetectMarket infers the exchange venue from the code prefix.
func DetectMarket(code string) Market {
	switch {
	case strings.HasPrefix(code, "6"):
		return MarketShanghai
	case strings.HasPrefix(code, "0"), strings.HasPrefix(code, "3"):
		return MarketShenzhen
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"):
		return MarketBeijing
	}
	return ""
}

// DetectBoard infers the listing board from the code prefix.
func DetectBoard(code string) string {
	switch {
	case strings.HasPrefix(code, "688"), strings.HasPrefix(code, "689"):
		return BoardSTAR
	case strings.HasPrefix(code, "300"), strings.HasPrefix(code, "301"):
		return BoardChiNext
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"):
		return BoardBSE
	case strings.HasPrefix(code, "6"):
		return BoardSHMain
	case code == "":
		return ""
	}
	return BoardSZMain
}
