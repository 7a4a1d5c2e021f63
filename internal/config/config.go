// Package config provides configuration for the relay service.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the full service configuration.
type Config struct {
	// Server settings
	WSPort   int `env:"WS_PORT,   default=8090"` // external WebSocket port
	HTTPPort int `env:"HTTP_PORT, default=8091"` // REST API, /health, /metrics

	// Storage
	DatabaseDSN string `env:"DATABASE_DSN, default=skycall.db"`

	// Auth settings
	JWTSecret string        `env:"JWT_SECRET, default=dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,  default=24h"`

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL,    default=30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT,    default=10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT,     default=60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE, default=65536"`

	// Roster settings
	RosterLimit int `env:"ROSTER_LIMIT, default=100"` // cap on entries per roster push

	// Logging
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
