package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dentalink/clinic-scheduler/internal/api"
	"github.com/dentalink/clinic-scheduler/internal/appointment"
	"github.com/dentalink/clinic-scheduler/internal/config"
	"github.com/dentalink/clinic-scheduler/internal/db"
	"github.com/dentalink/clinic-scheduler/internal/logging"
	"github.com/dentalink/clinic-scheduler/internal/notify"
	redisclient "github.com/dentalink/clinic-scheduler/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("api-server", "dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	loc := cfg.Location()
	store := appointment.NewPgStore(pgPool)
	notifier := notify.NewNotifier(store, rdb, log)
	svc := appointment.NewService(store, notifier, loc, cfg.GraceWindow, log)
	booking := appointment.NewBookingValidator(store, loc)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	router := api.NewRouter(api.RouterConfig{
		Store:     store,
		Service:   svc,
		Booking:   booking,
		Locker:    locker,
		PgPool:    pgPool,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
		Version:   version,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
}
