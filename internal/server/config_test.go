package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.ConnRateLimitEnabled)
	assert.Empty(t, cfg.TokenSet())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("CMDCHAT_TOKENS", "alpha, beta ,,gamma")
	t.Setenv("CMDCHAT_LOG_LEVEL", "debug")
	t.Setenv("CMDCHAT_METRICS_JSON", "1")
	t.Setenv("CMDCHAT_CONN_RATE_LIMIT", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.MetricsJSON)
	assert.False(t, cfg.ConnRateLimitEnabled)

	tokens := cfg.TokenSet()
	assert.Len(t, tokens, 3)
	assert.Contains(t, tokens, "alpha")
	assert.Contains(t, tokens, "beta")
	assert.Contains(t, tokens, "gamma")
}

func TestMetricsJSONPresenceCheck(t *testing.T) {
	// The value does not matter, only that the variable is set.
	t.Setenv("CMDCHAT_METRICS_JSON", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.MetricsJSON)
}
