package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctopics "github.com/radieske/crash-game-platform/pkg/contracts/topics"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "crash-service")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, ctopics.RoundSettled, cfg.TopicRoundSettled)
	assert.Equal(t, cfg.PostgresDSN, cfg.HistoryDSN)
	assert.Equal(t, 10*time.Second, cfg.Crash.WaitingDuration)
	assert.Equal(t, 50*time.Millisecond, cfg.Crash.TickInterval)
	assert.Equal(t, uint64(33), cfg.Crash.HouseEdgeModulo)
	assert.Equal(t, ctopics.BetCancelled, cfg.TopicBetCancelled)
	assert.Equal(t, "redis", cfg.BroadcastMode)
	assert.True(t, cfg.EventsEnabled)
	assert.Empty(t, cfg.WSAllowedOrigins)
}

func TestLoadGatewayPorts(t *testing.T) {
	t.Setenv("SERVICE_NAME", "api-gateway")
	t.Setenv("CRASH_URL", "http://crash:8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.HTTPPort)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, "http://crash:8080", cfg.CrashURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "wallet-service")
	t.Setenv("HTTP_PORT_WALLET", "9000")
	t.Setenv("CRASH_TICK_INTERVAL", "20ms")
	t.Setenv("CRASH_GROWTH_RATE", "0.0001")
	t.Setenv("HISTORY_DRIVER", "sqlite")
	t.Setenv("HISTORY_DSN", "file:history.db")
	t.Setenv("BROADCAST_MODE", "direct")
	t.Setenv("EVENTS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 20*time.Millisecond, cfg.Crash.TickInterval)
	assert.InDelta(t, 0.0001, cfg.Crash.GrowthRate, 1e-12)
	assert.Equal(t, "file:history.db", cfg.HistoryDSN)
	assert.Equal(t, "direct", cfg.BroadcastMode)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("CRASH_WAITING_DURATION", "soon")

	_, err := Load()
	require.Error(t, err)
}
