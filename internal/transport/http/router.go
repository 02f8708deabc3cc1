package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the admin surface. Handlers stay thin: validate, enqueue
// or call a service, answer JSON.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/identities/{id}/scan", h.triggerScan)
		r.Post("/sweeps", h.triggerFullSweep)
		r.Post("/breaches/{id}/resend", h.resendAlert)
		r.Post("/breaches/{id}/remediation", h.regenerateRemediation)
	})

	return r
}
