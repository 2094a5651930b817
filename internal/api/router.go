package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/turnos-scheduling/internal/appointment"
	"github.com/hackgods/turnos-scheduling/internal/metrics"
)

type RouterConfig struct {
	Service  *appointment.Service
	Health   *HealthHandler
	Identity IdentityResolver
	Metrics  *metrics.SchedulingMetrics
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Identity == nil {
		cfg.Identity = HeaderIdentity
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil, nil, "", "")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log, cfg.Metrics))

	// Health endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/slots", catalogHandler(cfg.Service))

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(cfg.Identity, log))

		r.Get("/physicians/{physicianRef}/availability", availabilityHandler(cfg.Service))

		r.Post("/appointments", bookAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/status", changeStatusHandler(cfg.Service))

		r.Get("/calendar/{year}/{month}", calendarHandler(cfg.Service))
	})

	return r
}
