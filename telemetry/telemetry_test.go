package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv("vmdbg", "test")
	require.NoError(t, err)

	assert.Equal(t, "vmdbg", cfg.ServiceName)
	assert.Equal(t, defaultServiceVersion, cfg.ServiceVersion)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.Endpoint)
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "other")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_TIMEOUT", "2s")

	cfg, err := LoadConfigFromEnv("vmdbg", "test")
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "other", cfg.ServiceName)
	assert.Equal(t, "http://collector:4318", cfg.Endpoint)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, Initialize(context.Background(), &Config{Enabled: false}))
}

func TestInitializeWithoutEndpoint(t *testing.T) {
	t.Parallel()

	require.NoError(t, Initialize(context.Background(), &Config{Enabled: true}))
}

func TestLogHandlerNilWhenUninitialized(t *testing.T) {
	t.Parallel()

	assert.Nil(t, LogHandler("vmdbg"))
}

func TestShutdownWithoutInitialize(t *testing.T) {
	t.Parallel()

	require.NoError(t, Shutdown(context.Background()))
}
