package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aistocker/quotehub/internal/cache"
	"github.com/aistocker/quotehub/internal/feed"
	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/normalizer/eastmoney"
	"github.com/aistocker/quotehub/internal/normalizer/tencent"
	"github.com/aistocker/quotehub/internal/quote"
)

func newTestHandler(t *testing.T, fetch func(code string) (map[string]any, error)) http.Handler {
	t.Helper()
	reg := normalizer.NewRegistry()
	reg.Register(tencent.New())
	reg.Register(eastmoney.New())

	fetcher := feed.FetcherFunc(func(_ context.Context, code string) (map[string]any, error) {
		return fetch(code)
	})
	providers := []feed.Provider{
		{Source: quote.SourceTencent, Weight: 1.0, Fetcher: fetcher},
		{Source: quote.SourceEastmoney, Weight: 0.9, Fetcher: fetcher},
	}
	svc := feed.NewService(providers, reg, cache.NewMemory(),
		feed.WithMaxRetries(0), feed.WithBackoffBase(time.Millisecond))
	return NewHandler(svc, reg)
}

func okFetch(code string) (map[string]any, error) {
	return map[string]any{"f12": code, "f14": "浦发银行", "f2": 10.5}, nil
}

func failFetch(string) (map[string]any, error) {
	return nil, errors.New("upstream down")
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGetQuote(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes/600000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp APIResponse[feed.Result]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Quote.Code != "600000" {
		t.Errorf("wrong code: %s", resp.Data.Quote.Code)
	}
	if resp.Data.Quote.Price == nil || *resp.Data.Quote.Price != 10.5 {
		t.Error("price missing from response")
	}
	if resp.Data.Cached {
		t.Error("live quote must not be marked cached")
	}
}

func TestGetQuoteBadCode(t *testing.T) {
	h := newTestHandler(t, okFetch)
	for _, path := range []string{"/api/v1/quotes/abc", "/api/v1/quotes/12345"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestGetQuoteUnavailable(t *testing.T) {
	h := newTestHandler(t, failFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes/600000", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when every source fails, got %d", rec.Code)
	}
}

func TestGetQuotesBatch(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes?codes=600000,000001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp APIResponse[map[string]batchEntry]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 entries, got %d", len(resp.Data))
	}
	for code, entry := range resp.Data {
		if entry.Error != "" {
			t.Errorf("%s: unexpected error %q", code, entry.Error)
		}
		if entry.Quote == nil || entry.Quote.Code != code {
			t.Errorf("%s: entry missing its quote", code)
		}
	}
}

func TestGetQuotesBatchPartialFailure(t *testing.T) {
	h := newTestHandler(t, func(code string) (map[string]any, error) {
		if code == "000002" {
			return nil, errors.New("not covered")
		}
		return okFetch(code)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes?codes=600000,000002", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp APIResponse[map[string]batchEntry]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("every requested code must appear, got %d entries", len(resp.Data))
	}
	if resp.Data["600000"].Quote == nil || resp.Data["600000"].Error != "" {
		t.Errorf("600000 should have succeeded: %+v", resp.Data["600000"])
	}
	failed := resp.Data["000002"]
	if failed.Quote != nil {
		t.Error("failed code must not carry a quote")
	}
	if failed.Error == "" {
		t.Error("failed code must carry its error message")
	}
}

func TestGetQuotesBatchValidation(t *testing.T) {
	h := newTestHandler(t, okFetch)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing codes: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes?codes=600000,bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad code in list: expected 400, got %d", rec.Code)
	}
}

func TestGetQuotesCSV(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes?codes=600000&format=csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "600000") {
		t.Errorf("csv body missing quote row: %s", body)
	}
}

func TestListSources(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sources", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp APIResponse[[]quote.Source]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 registered sources, got %v", resp.Data)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp APIResponse[feed.Status]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Providers) != 2 {
		t.Errorf("expected 2 providers in status, got %d", len(resp.Data.Providers))
	}
}

func TestGetMergedQuote(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quotes/600000/merged", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp APIResponse[struct {
		Quote        quote.Quote    `json:"quote"`
		Contributors []quote.Source `json:"contributors"`
	}]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Quote.Code != "600000" {
		t.Errorf("wrong code: %s", resp.Data.Quote.Code)
	}
	if len(resp.Data.Contributors) == 0 {
		t.Error("merged response should list contributors")
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestHandler(t, okFetch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated request id header")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "fixed-id" {
		t.Error("provided request id must be echoed")
	}
}
