// Package config loads daemon configuration from the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// UDP listener
	ListenHost     string
	ListenPort     int
	MaxPacketBytes int

	// Server registry
	SkipAuth bool // dev mode: auto-register unknown servers

	// Rate limiting (per source ip:port)
	RateLimitPerMinute int
	RateLimitBurst     int

	// Per-server worker shards
	ShardCount int
	ShardQueue int

	// Event batch flushing
	FlushInterval time.Duration

	// Storage
	PostgresURL   string
	ClickHouseURL string
	RedisURL      string

	// Logging
	LogLevel string // error|warn|info|debug
	LogBots  bool

	// HTTP observability surface
	HTTPPort int

	// Shutdown
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables. It returns an error
// if critical configuration is missing.
func Load() (*Config, error) {
	cfg := &Config{
		ListenHost:     getEnv("LISTEN_HOST", "0.0.0.0"),
		ListenPort:     getEnvInt("LISTEN_PORT", 27500),
		MaxPacketBytes: getEnvInt("MAX_PACKET_BYTES", 8192),

		SkipAuth: getEnvBool("SKIP_AUTH", false),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 2000),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 200),

		ShardCount: getEnvInt("SHARD_COUNT", 8),
		ShardQueue: getEnvInt("SHARD_QUEUE", 1000),

		FlushInterval: getEnvDuration("FLUSH_INTERVAL", 5*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogBots:  getEnvBool("LOG_BOTS", false),

		HTTPPort: getEnvInt("HTTP_PORT", 9091),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	var err error
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}
	if cfg.ClickHouseURL, err = getEnvRequired("CLICKHOUSE_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = getEnvRequired("REDIS_URL"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

