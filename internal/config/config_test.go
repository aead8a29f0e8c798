package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigAllSectionsPopulated(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "desktop", cfg.Server.ClientType)
	assert.Equal(t, "10s", cfg.Network.ConnectTimeout)
	assert.Equal(t, "30s", cfg.Network.RequestTimeout)
	assert.Equal(t, "1s", cfg.Backoff.Base)
	assert.Equal(t, "5m", cfg.Backoff.Max)
	assert.Equal(t, 2.0, cfg.Backoff.Multiplier)
	assert.True(t, cfg.Sync.Websocket)
	assert.Equal(t, 200, cfg.Sync.PullBatchSize)
	assert.Equal(t, "10m", cfg.Cleanup.Interval)
	assert.Equal(t, "1m", cfg.Cleanup.Debounce)
	assert.Equal(t, "24h", cfg.Cleanup.TempFileMaxAge)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NotNil(t, cfg.Workspaces)
	assert.Empty(t, cfg.Workspaces)
}

func TestDefaultConfigPassesValidation(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, Validate(cfg))
}
