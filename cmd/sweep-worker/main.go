package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
	"github.com/dentalink/clinic-scheduler/internal/config"
	"github.com/dentalink/clinic-scheduler/internal/db"
	"github.com/dentalink/clinic-scheduler/internal/logging"
	"github.com/dentalink/clinic-scheduler/internal/notify"
	redisclient "github.com/dentalink/clinic-scheduler/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("sweep-worker", "dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New("sweep-worker", cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("starting expiry sweep worker")

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

	store := appointment.NewPgStore(pgPool)
	notifier := notify.NewNotifier(store, rdb, log)
	svc := appointment.NewService(store, notifier, cfg.Location(), cfg.GraceWindow, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	res, err := svc.SweepExpired(runCtx, start)
	if err != nil {
		log.Error().Err(err).Msg("sweep run error")
		return
	}

	ev := log.Info()
	if len(res.Failures) > 0 {
		ev = log.Warn().Int("failures", len(res.Failures))
	}
	ev.Int("scanned", res.Scanned).
		Int("expired", res.Expired).
		Dur("took", time.Since(start)).
		Msg("sweep run complete")
}
