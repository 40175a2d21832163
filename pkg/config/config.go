// Package config loads application configuration from environment
// variables with sensible defaults for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lsec-edu/microlearn/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database settings
	PostgresURL      string
	PostgresMaxConns int

	// Token settings
	JWTSecret string
	TokenTTL  time.Duration

	// Observability settings
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// Load reads configuration from MICROLEARN_* environment variables
func Load() *Config {
	return &Config{
		Host:            getEnv("MICROLEARN_HOST", "0.0.0.0"),
		Port:            getEnvInt("MICROLEARN_PORT", 8080),
		ReadTimeout:     getEnvDuration("MICROLEARN_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDuration("MICROLEARN_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("MICROLEARN_SHUTDOWN_TIMEOUT", 10*time.Second),

		PostgresURL:      getEnv("MICROLEARN_POSTGRES_URL", "postgres://localhost/microlearn?sslmode=disable"),
		PostgresMaxConns: getEnvInt("MICROLEARN_POSTGRES_MAX_CONNS", 20),

		JWTSecret: getEnv("MICROLEARN_JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("MICROLEARN_TOKEN_TTL", 24*time.Hour),

		LogLevel:       parseLogLevel(getEnv("MICROLEARN_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("MICROLEARN_METRICS_ENABLED", true),
	}
}

// ListenAddr returns the host:port pair to bind the HTTP server on
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that required settings are present and coherent
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("MICROLEARN_JWT_SECRET is required")
	}
	if c.PostgresURL == "" {
		return fmt.Errorf("MICROLEARN_POSTGRES_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

func parseLogLevel(s string) observability.LogLevel {
	switch s {
	case "debug":
		return observability.DebugLevel
	case "warn":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
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
