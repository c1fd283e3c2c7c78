package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
	redisclient "github.com/dentalink/clinic-scheduler/internal/redis"
)

type RouterConfig struct {
	Store     appointment.Store
	Service   *appointment.Service
	Booking   *appointment.BookingValidator
	Locker    redisclient.Locker
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := NewHandlers(cfg.Store, cfg.Service, cfg.Booking, cfg.Locker)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/availability", h.listAvailability)

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Patch("/appointments/{id}", h.updateAppointment)
		r.Post("/appointments/{id}/status", h.setStatus)
		r.Delete("/appointments/{id}", h.deleteAppointment)

		r.Get("/reports/summary", h.reportSummary)
	})

	return r
}
