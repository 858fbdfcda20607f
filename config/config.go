package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every knob the service reads from the environment.
type Config struct {
	Port     string `envconfig:"PORT" default:"5300"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty DATABASE_URL switches to the in-memory store (local dev only).
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Empty REDIS_URL switches the idempotency guard to in-process memory.
	RedisURL string `envconfig:"REDIS_URL"`

	// Empty RABBITMQ_URL switches the event sink to log-only.
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`
	EventQueue  string `envconfig:"PROGRESSION_EVENT_QUEUE" default:"progression_events"`

	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	GatewayToken   string `envconfig:"GATEWAY_SERVICE_TOKEN" required:"true"`

	// Account service the profile sync worker polls; empty disables the worker.
	SyncServiceURL   string `envconfig:"SYNC_SERVICE_URL"`
	SyncServicePath  string `envconfig:"SYNC_SERVICE_PATH" default:"/api/v1/public/profiles"`
	SyncServiceToken string `envconfig:"SYNC_SERVICE_TOKEN"`

	ManualAwardMaxXP    int64         `envconfig:"MANUAL_AWARD_MAX_XP" default:"1000"`
	StreakSweepInterval time.Duration `envconfig:"STREAK_SWEEP_INTERVAL" default:"1h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}
