package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`

	PostgresDSN      string `envconfig:"POSTGRES_DSN" required:"true"`
	PostgresMaxConns int32  `envconfig:"POSTGRES_MAX_CONNS" default:"10"`

	RedisAddr         string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisUsername     string `envconfig:"REDIS_USERNAME" default:""`
	RedisPassword     string `envconfig:"REDIS_PASSWORD" default:""`
	RedisPoolSize     int    `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisMinIdleConns int    `envconfig:"REDIS_MIN_IDLE_CONNS" default:"1"`

	// PendingTimeout is how long an unpaid pending_payment booking keeps
	// its slot before the expiration sweep releases it.
	PendingTimeout time.Duration `envconfig:"PENDING_TIMEOUT" default:"5m"`

	// SlotGranularity is the spacing between offered slot starts.
	SlotGranularity time.Duration `envconfig:"SLOT_GRANULARITY" default:"30m"`

	// MinLeadTime pushes today's earliest offered slot past now.
	MinLeadTime time.Duration `envconfig:"MIN_LEAD_TIME" default:"0s"`

	LockTTL         time.Duration `envconfig:"LOCK_TTL" default:"5s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	SweepInterval       time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	MaterializeInterval time.Duration `envconfig:"MATERIALIZE_INTERVAL" default:"15m"`

	NotifyChannel string `envconfig:"NOTIFY_CHANNEL" default:"notifications:booking"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}

	if cfg.SlotGranularity <= 0 {
		return Config{}, fmt.Errorf("SLOT_GRANULARITY must be positive, got %s", cfg.SlotGranularity)
	}
	if cfg.PendingTimeout <= 0 {
		return Config{}, fmt.Errorf("PENDING_TIMEOUT must be positive, got %s", cfg.PendingTimeout)
	}
	if cfg.PostgresMaxConns < 1 {
		return Config{}, fmt.Errorf("POSTGRES_MAX_CONNS must be at least 1, got %d", cfg.PostgresMaxConns)
	}
	if cfg.RedisPoolSize < 1 {
		return Config{}, fmt.Errorf("REDIS_POOL_SIZE must be at least 1, got %d", cfg.RedisPoolSize)
	}

	return cfg, nil
}
