package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aval/internal/platform/health"
	"aval/internal/platform/middleware"
)

// RouterConfig carries the wiring the router needs beyond the handler itself.
type RouterConfig struct {
	AdminJWTKey string
	Health      *health.Handler
}

// NewRouter wires all public and admin endpoints with middleware.
func NewRouter(h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Post("/payments", h.handlePayment)
	r.Post("/refunds", h.handleRefund)
	r.Post("/fraud-flags", h.handleFraudFlag)
	r.Get("/report", h.handleReport)

	// Admin endpoints require a bearer token carrying the admin scope.
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(cfg.AdminJWTKey, logger))
		admin.Post("/admin/revoke", h.handleRevoke)
	})

	r.Handle("/metrics", promhttp.Handler())
	if cfg.Health != nil {
		cfg.Health.Register(r)
	}

	return r
}
