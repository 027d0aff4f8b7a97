package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8091", cfg.AgentAddress())
	assert.Equal(t, ":8090", cfg.GatewayAddress())
	assert.Equal(t, "http://localhost:8090", cfg.GatewayURL)
	assert.Equal(t, "ws://localhost:8090/ws", cfg.SocketURL)
	assert.Equal(t, "automarked.events", cfg.AMQPExchange)
	assert.False(t, cfg.DebugRoutes)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUTOMARKED_GATEWAY_URL", "http://gateway:9000/")
	t.Setenv("AUTOMARKED_USER_ID", "u1")
	t.Setenv("AUTOMARKED_DEBUG_ROUTES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://gateway:9000", cfg.GatewayURL, "trailing slash is trimmed")
	assert.Equal(t, "u1", cfg.UserID)
	assert.True(t, cfg.DebugRoutes)
}

func TestListenAddressAcceptsColonPrefix(t *testing.T) {
	cfg := Config{AgentPort: ":7000"}
	assert.Equal(t, ":7000", cfg.AgentAddress())
}
