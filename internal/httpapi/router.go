package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// defaultRequestDeadline applies when Server.RequestDeadline is unset,
// matching internal/config's own default for REQUEST_DEADLINE.
const defaultRequestDeadline = 30 * time.Second

// Routes builds the chi router for the full HTTP surface (spec §6).
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	deadline := s.RequestDeadline
	if deadline <= 0 {
		deadline = defaultRequestDeadline
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Bounds every inbound request with an overall deadline that propagates
	// to downstream store/cache calls via ctx (spec §5 "Cancellation and
	// timeouts").
	r.Use(middleware.Timeout(deadline))

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(TenantAuthMiddleware(s.TenantAuth))

			r.Route("/ingestion", func(r chi.Router) {
				r.Post("/events", s.IngestEvent)
				r.Post("/events/batch", s.IngestBatch)
				r.Get("/events/search", s.Search)
				r.Get("/events/{id}", s.GetEvent)
				r.Get("/stats", s.Stats)
			})
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
