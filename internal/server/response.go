package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aistocker/quotehub/internal/feed"
	"github.com/aistocker/quotehub/internal/quote"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

// batchEntry is the JSON form of one code's batch outcome: a quote on
// success, an error message otherwise.
type batchEntry struct {
	Quote  *quote.Quote `json:"quote,omitempty"`
	Cached bool         `json:"cached,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func writeCSV(w http.ResponseWriter, codes []string, outcomes map[string]feed.BatchOutcome) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=quotes.csv")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintln(w, "Code,Name,Market,Price,ChangePercent,Volume,Source,FetchedAt,Cached")
	for _, code := range codes {
		o, ok := outcomes[code]
		if !ok || o.Err != nil {
			continue
		}
		r := o.Result
		q := r.Quote
		_, _ = fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s,%t\n",
			q.Code,
			q.Name,
			q.Market,
			csvFloat(q.Price),
			csvFloat(q.ChangePercent),
			csvInt(q.Volume),
			q.Source,
			q.FetchedAt.Format(time.RFC3339),
			r.Cached,
		)
	}
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *v)
}

func csvInt(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
