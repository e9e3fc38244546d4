package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/agendly/booking-engine/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	Sweeper *booking.Sweeper
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Log     zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", availabilityHandler(cfg.Service))

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", createBookingHandler(cfg.Service))
		r.Get("/", listBookingsHandler(cfg.Service))
		r.Get("/{id}", getBookingHandler(cfg.Service))
		r.Post("/{id}/confirm", confirmBookingHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelBookingHandler(cfg.Service))
		r.Post("/{id}/complete", completeBookingHandler(cfg.Service))
		r.Post("/{id}/no-show", noShowBookingHandler(cfg.Service))
	})

	// Cron-over-HTTP trigger surface. Idempotent under repeated and
	// overlapping invocation.
	r.Route("/internal/sweeps", func(r chi.Router) {
		r.Post("/expire-pending", expireSweepHandler(cfg.Sweeper))
		r.Post("/auto-complete", autoCompleteSweepHandler(cfg.Sweeper))
		r.Post("/materialize-recurring", materializeSweepHandler(cfg.Sweeper))
	})

	return r
}
