package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port       string
	Env        string
	InstanceID string // Identifies this process on the shared pub/sub channel

	RedisURL    string
	AmqpURL     string
	DatabaseURL string

	// Gateway
	AuthGrace      time.Duration // Unauthenticated connections are closed after this
	MaxMessageSize int64

	// Scheduler
	DigestCron     string // Daily unread-digest fire time (cron expression)
	DigestTimezone string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		InstanceID:     getEnv("INSTANCE_ID", uuid.NewString()),
		RedisURL:       os.Getenv("REDIS_URL"),
		AmqpURL:        os.Getenv("AMQP_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AuthGrace:      getEnvDuration("AUTH_GRACE", 10*time.Second),
		MaxMessageSize: getEnvInt64("MAX_MESSAGE_SIZE", 64*1024),
		DigestCron:     getEnv("DIGEST_CRON", "0 9 * * *"),
		DigestTimezone: getEnv("DIGEST_TZ", "UTC"),
	}

	// In production the shared infrastructure is required: without Redis
	// there is no cross-instance delivery or presence, without the broker no
	// background jobs.
	if cfg.Env == "production" {
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.AmqpURL == "" {
			panic("AMQP_URL is required in production")
		}
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
