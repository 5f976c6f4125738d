package quote

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToMap returns the structured field→value form of the quote. Absent
// optional fields are left out entirely so that absence survives the round
// trip through FromMap.
func (q *Quote) ToMap() map[string]any {
	m := map[string]any{
		"code":         q.Code,
		"source":       string(q.Source),
		"fetchedAt":    q.FetchedAt.Format(time.RFC3339Nano),
		"qualityScore": q.QualityScore,
	}
	for k, v := range map[string]string{
		"name": q.Name, "market": string(q.Market), "board": q.Board, "sector": q.Sector,
	} {
		if v != "" {
			m[k] = v
		}
	}
	for k, v := range map[string]*float64{
		"price": q.Price, "open": q.Open, "high": q.High, "low": q.Low,
		"preClose": q.PreClose, "changeAmount": q.ChangeAmount, "changePercent": q.ChangePercent,
		"amount": q.Amount, "turnoverRate": q.TurnoverRate, "marketCap": q.MarketCap, "totalCap": q.TotalCap,
	} {
		if v != nil {
			m[k] = *v
		}
	}
	if q.Volume != nil {
		m["volume"] = *q.Volume
	}
	return m
}

// FromMap reconstructs a quote from its structured form. Numeric values may
// arrive as float64 (e.g. decoded JSON), int or int64; fetchedAt as a
// time.Time or an RFC3339 string.
func FromMap(m map[string]any) (*Quote, error) {
	q := &Quote{}
	var ok bool
	if q.Code, ok = m["code"].(string); !ok || q.Code == "" {
		return nil, fmt.Errorf("quote: map has no code field")
	}
	if s, ok := m["source"].(string); ok {
		q.Source = Source(s)
	}
	q.Name, _ = m["name"].(string)
	if s, ok := m["market"].(string); ok {
		q.Market = Market(s)
	}
	q.Board, _ = m["board"].(string)
	q.Sector, _ = m["sector"].(string)

	for k, dst := range map[string]**float64{
		"price": &q.Price, "open": &q.Open, "high": &q.High, "low": &q.Low,
		"preClose": &q.PreClose, "changeAmount": &q.ChangeAmount, "changePercent": &q.ChangePercent,
		"amount": &q.Amount, "turnoverRate": &q.TurnoverRate, "marketCap": &q.MarketCap, "totalCap": &q.TotalCap,
	} {
		if v, present := m[k]; present {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("quote: field %s: %w", k, err)
			}
			*dst = &f
		}
	}
	if v, present := m["volume"]; present {
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("quote: field volume: %w", err)
		}
		q.Volume = &n
	}

	switch v := m["fetchedAt"].(type) {
	case time.Time:
		q.FetchedAt = v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("quote: parse fetchedAt: %w", err)
		}
		q.FetchedAt = t
	}
	if v, present := m["qualityScore"]; present {
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("quote: field qualityScore: %w", err)
		}
		q.QualityScore = f
	}
	return q, nil
}

// ToJSON returns the quote in its text form.
func (q *Quote) ToJSON() ([]byte, error) {
	return json.Marshal(q)
}

// FromJSON reconstructs a quote from its text form. Optional fields missing
// from the document stay absent rather than becoming zero.
func FromJSON(data []byte) (*Quote, error) {
	q := &Quote{}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("quote: decode json: %w", err)
	}
	return q, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}
