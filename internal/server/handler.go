package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aistocker/quotehub/internal/apperror"
	"github.com/aistocker/quotehub/internal/feed"
	"github.com/aistocker/quotehub/internal/normalizer"
	"github.com/aistocker/quotehub/internal/quote"
)

const maxBatchCodes = 100

type handler struct {
	feedSvc  *feed.Service
	registry *normalizer.Registry
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Sources())
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.feedSvc.Status())
}

func (h *handler) getQuote(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !quote.ValidCode(code) {
		writeError(w, http.StatusBadRequest, "code must be a 6-digit instrument code")
		return
	}

	result, err := h.feedSvc.FetchQuote(r.Context(), code)
	if err != nil {
		var exhausted *feed.AllSourcesExhaustedError
		if errors.As(err, &exhausted) {
			ae := apperror.New(apperror.Unavailable, "no quote source available for "+code)
			writeError(w, ae.HTTPStatus(), ae.Message())
			return
		}
		var ae *apperror.AppError
		if errors.As(err, &ae) {
			writeError(w, ae.HTTPStatus(), ae.Message())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getMergedQuote(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !quote.ValidCode(code) {
		writeError(w, http.StatusBadRequest, "code must be a 6-digit instrument code")
		return
	}

	merged, stats, err := h.feedSvc.FetchMerged(r.Context(), code)
	if err != nil {
		var exhausted *feed.AllSourcesExhaustedError
		if errors.As(err, &exhausted) {
			ae := apperror.New(apperror.Unavailable, "no quote source available for "+code)
			writeError(w, ae.HTTPStatus(), ae.Message())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"quote":        merged,
		"contributors": stats.Contributors[code],
	})
}

func (h *handler) getQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("codes")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "codes query parameter is required")
		return
	}

	var codes []string
	seen := make(map[string]bool)
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		if !quote.ValidCode(c) {
			writeError(w, http.StatusBadRequest, "invalid instrument code: "+c)
			return
		}
		seen[c] = true
		codes = append(codes, c)
	}
	if len(codes) == 0 {
		writeError(w, http.StatusBadRequest, "codes query parameter is required")
		return
	}
	if len(codes) > maxBatchCodes {
		writeError(w, http.StatusBadRequest, "too many codes in one request")
		return
	}

	outcomes := h.feedSvc.FetchQuotesBatch(r.Context(), codes)

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, codes, outcomes)
		return
	}

	entries := make(map[string]batchEntry, len(outcomes))
	for code, o := range outcomes {
		if o.Err != nil {
			entries[code] = batchEntry{Error: o.Err.Error()}
			continue
		}
		entries[code] = batchEntry{Quote: &o.Result.Quote, Cached: o.Result.Cached}
	}
	writeJSON(w, http.StatusOK, entries)
}
