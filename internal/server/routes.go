package server

import (
	"net/http"

	"github.com/aistocker/quotehub/internal/feed"
	"github.com/aistocker/quotehub/internal/normalizer"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(feedSvc *feed.Service, registry *normalizer.Registry) http.Handler {
	return newMux(feedSvc, registry)
}

func newMux(feedSvc *feed.Service, registry *normalizer.Registry) http.Handler {
	h := &handler{
		feedSvc:  feedSvc,
		registry: registry,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/sources", h.listSources)
	mux.HandleFunc("GET /api/v1/status", h.status)
	mux.HandleFunc("GET /api/v1/quotes", h.getQuotes)
	mux.HandleFunc("GET /api/v1/quotes/{code}", h.getQuote)
	mux.HandleFunc("GET /api/v1/quotes/{code}/merged", h.getMergedQuote)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
