package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendly/booking-engine/internal/booking"
	"github.com/agendly/booking-engine/internal/config"
	"github.com/agendly/booking-engine/internal/db"
	"github.com/agendly/booking-engine/internal/notify"
	redisclient "github.com/agendly/booking-engine/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env, "sweep-worker")
	log.Info().
		Str("env", cfg.Env).
		Dur("sweep_interval", cfg.SweepInterval).
		Dur("materialize_interval", cfg.MaterializeInterval).
		Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	notifier := notify.NewRedisPublisher(rdb, cfg.NotifyChannel)
	sweeper := booking.NewSweeper(repo, notifier, cfg, log)

	// Run every job once at startup so a restart never leaves stale state
	// waiting a full interval.
	runSweeps(rootCtx, sweeper, log)
	runMaterialize(rootCtx, sweeper, log)

	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()
	materializeTicker := time.NewTicker(cfg.MaterializeInterval)
	defer materializeTicker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sweep worker")
			return
		case <-sweepTicker.C:
			runSweeps(rootCtx, sweeper, log)
		case <-materializeTicker.C:
			runMaterialize(rootCtx, sweeper, log)
		}
	}
}

func runSweeps(ctx context.Context, sweeper *booking.Sweeper, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := sweeper.ExpirePending(runCtx); err != nil {
		log.Error().Err(err).Msg("expiration sweep error")
	}
	if _, err := sweeper.AutoComplete(runCtx); err != nil {
		log.Error().Err(err).Msg("auto-completion sweep error")
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("sweep run complete")
}

func runMaterialize(ctx context.Context, sweeper *booking.Sweeper, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	if _, err := sweeper.MaterializeRecurring(runCtx); err != nil {
		log.Error().Err(err).Msg("recurring materializer error")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("materializer run complete")
}

func newLogger(env, service string) zerolog.Logger {
	if env == "dev" {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(out).With().Timestamp().Str("service", service).Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
}
