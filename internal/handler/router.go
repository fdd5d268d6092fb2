package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and Content-Type validation middleware.
func NewRouter(market *MarketHandler, man *ManualHandler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Automated market routes.
	r.Post("/dealers", market.SpawnDealer)
	r.Post("/buyers", market.SpawnBuyer)
	r.Get("/listings", market.ListListings)
	r.Get("/ledger", market.GetLedger)

	// Manual buyer routes.
	r.Post("/manual/buyers", man.CreateBuyer)
	r.Get("/manual/buyers/{buyer_id}/candidates", man.GetCandidates)
	r.Post("/manual/buyers/{buyer_id}/accept", man.BuyerAccept)
	r.Post("/manual/buyers/{buyer_id}/reject", man.BuyerReject)
	r.Post("/manual/buyers/{buyer_id}/propose", man.BuyerPropose)
	r.Post("/manual/buyers/{buyer_id}/negotiate", man.BuyerNegotiate)
	r.Post("/manual/buyers/{buyer_id}/decision", man.BuyerDecision)
	r.Post("/manual/buyers/{buyer_id}/chat", man.Chat)
	r.Get("/manual/buyers/{buyer_id}/messages", man.Messages)
	r.Get("/manual/buyers/{buyer_id}/status", man.Status)

	// Manual dealer routes.
	r.Post("/manual/dealers", man.CreateDealer)
	r.Post("/manual/dealers/{dealer_id}/accept", man.DealerAccept)
	r.Post("/manual/dealers/{dealer_id}/reject", man.DealerReject)
	r.Post("/manual/dealers/{dealer_id}/propose", man.DealerPropose)
	r.Post("/manual/dealers/{dealer_id}/chat", man.Chat)
	r.Get("/manual/dealers/{dealer_id}/messages", man.Messages)
	r.Get("/manual/dealers/{dealer_id}/status", man.Status)

	return r
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST,
// PUT, and PATCH requests before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
