package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsec-edu/microlearn/pkg/observability"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, observability.InfoLevel, cfg.LogLevel)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("MICROLEARN_HOST", "127.0.0.1")
	t.Setenv("MICROLEARN_PORT", "9090")
	t.Setenv("MICROLEARN_JWT_SECRET", "s3cr3t")
	t.Setenv("MICROLEARN_TOKEN_TTL", "2h")
	t.Setenv("MICROLEARN_LOG_LEVEL", "debug")
	t.Setenv("MICROLEARN_METRICS_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "s3cr3t", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr())
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("MICROLEARN_PORT", "not-a-number")
	t.Setenv("MICROLEARN_TOKEN_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestValidate(t *testing.T) {
	t.Setenv("MICROLEARN_JWT_SECRET", "s3cr3t")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	noSecret := Load()
	noSecret.JWTSecret = ""
	assert.Error(t, noSecret.Validate())

	badPort := Load()
	badPort.Port = -1
	assert.Error(t, badPort.Validate())

	badTTL := Load()
	badTTL.TokenTTL = 0
	assert.Error(t, badTTL.Validate())
}
