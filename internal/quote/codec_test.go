package quote

import (
	"testing"
	"time"
)

func TestMapRoundTrip(t *testing.T) {
	orig := &Quote{
		Code:          "000001",
		Name:          "平安银行",
		Market:        MarketShenzhen,
		Board:         BoardSZMain,
		Price:         Float(10.5),
		ChangePercent: Float(-2.5),
		Volume:        Int(123456),
		Source:        SourceEastmoney,
		FetchedAt:     time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC),
		QualityScore:  0.42,
	}

	back, err := FromMap(orig.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if back.Code != orig.Code || back.Name != orig.Name || back.Market != orig.Market {
		t.Errorf("identity fields changed: %+v", back)
	}
	if back.Price == nil || *back.Price != 10.5 {
		t.Error("price did not survive the round trip")
	}
	if back.ChangePercent == nil || *back.ChangePercent != -2.5 {
		t.Error("changePercent did not survive the round trip")
	}
	if back.Volume == nil || *back.Volume != 123456 {
		t.Error("volume did not survive the round trip")
	}
	if !back.FetchedAt.Equal(orig.FetchedAt) {
		t.Errorf("fetchedAt changed: %v vs %v", back.FetchedAt, orig.FetchedAt)
	}
	if back.QualityScore != orig.QualityScore {
		t.Errorf("qualityScore changed: %f vs %f", back.QualityScore, orig.QualityScore)
	}

	// Absent fields must stay absent, not become zero values.
	if back.Open != nil || back.High != nil || back.Amount != nil {
		t.Error("absent fields must remain nil after the round trip")
	}
}

func TestFromMapMissingCode(t *testing.T) {
	if _, err := FromMap(map[string]any{"price": 10.0}); err == nil {
		t.Error("expected error for map without code")
	}
}

func TestFromMapNumericCoercion(t *testing.T) {
	q, err := FromMap(map[string]any{
		"code":   "600000",
		"price":  10,           // int
		"open":   float64(9.8), // float64
		"volume": float64(500), // float64, as JSON decodes numbers
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *q.Price != 10 || *q.Open != 9.8 || *q.Volume != 500 {
		t.Errorf("coercion mismatch: %+v", q)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := &Quote{
		Code:      "688001",
		Price:     Float(55.3),
		High:      Float(56.0),
		Low:       Float(54.2),
		Source:    SourceTencent,
		FetchedAt: time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC),
	}

	data, err := orig.ToJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *back.Price != 55.3 || *back.High != 56.0 || *back.Low != 54.2 {
		t.Errorf("price fields changed: %+v", back)
	}
	if back.Open != nil || back.Volume != nil {
		t.Error("absent fields must decode as nil")
	}
	if back.Source != SourceTencent {
		t.Errorf("source changed: %s", back.Source)
	}
}
