package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medagenda/clinic-scheduling/internal/assistant"
	"github.com/medagenda/clinic-scheduling/internal/scheduling"
	"github.com/medagenda/clinic-scheduling/pkg/logging"
)

type RouterConfig struct {
	Service   *scheduling.Service
	Directory *scheduling.Directory
	Bridge    *assistant.Bridge
	Sessions  *assistant.SessionStore

	PgPool *pgxpool.Pool
	Redis  *redis.Client

	// SlotHorizonDays bounds the open-slot search endpoint.
	SlotHorizonDays int
	// Location is the clinic timezone; the open-slot endpoint derives its
	// default search date from it rather than from server-local time.
	Location *time.Location

	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	if cfg.SlotHorizonDays <= 0 {
		cfg.SlotHorizonDays = 7
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Post("/appointments", createAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	r.Get("/practitioners", listPractitionersHandler(cfg.Directory))
	r.Get("/practitioners/{id}/slots", openSlotsHandler(cfg.Service, cfg.Location, cfg.SlotHorizonDays))
	r.Get("/practitioners/{id}/schedule", weeklyScheduleHandler(cfg.Directory))

	if cfg.Sessions != nil {
		r.Post("/intake/sessions", startSessionHandler(cfg.Sessions))
		r.Get("/intake/sessions/{id}", getSessionHandler(cfg.Sessions))
		r.Put("/intake/sessions/{id}", updateSessionHandler(cfg.Sessions))
		r.Delete("/intake/sessions/{id}", endSessionHandler(cfg.Sessions))
	}
	r.Post("/intake/bookings", intakeBookingHandler(cfg.Bridge, cfg.Sessions))

	return r
}
