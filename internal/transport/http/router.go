package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"affinet/internal/platform/middleware"
)

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/onboard", h.handleOnboard)
	r.Post("/transactions", h.handleExecute)
	r.Post("/transactions/validate", h.handleValidate)
	r.Post("/escrow/{correlationID}/release", h.handleReleaseEscrow)
	r.Get("/identities/{uin}/stats", h.handleStats)
	r.Get("/identities/{uin}/affiliate-link", h.handleAffiliateLink)
	r.Get("/r", h.handleReferral)

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
