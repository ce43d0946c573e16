package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.RemoteURL)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)

	sync := cfg.Sync()
	assert.Equal(t, time.Second, sync.SettleDelay)
	assert.Equal(t, 4, sync.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, sync.InitialBackoff)
	assert.Equal(t, 8*time.Second, sync.MaxBackoff)
	assert.Equal(t, 10*time.Second, sync.AttemptTimeout)
}

func TestLoadClientOverrides(t *testing.T) {
	t.Setenv("POS_REMOTE_URL", "http://store:5000/api")
	t.Setenv("POS_SYNC_MAX_ATTEMPTS", "6")
	t.Setenv("POS_SETTLE_DELAY", "250ms")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://store:5000/api", cfg.RemoteURL)
	assert.Equal(t, 6, cfg.SyncAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
}

func TestLoadClientInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"zero page size":   {"POS_PAGE_SIZE": "0"},
		"zero attempts":    {"POS_SYNC_MAX_ATTEMPTS": "0"},
		"inverted backoff": {"POS_SYNC_INITIAL_BACKOFF": "10s", "POS_SYNC_MAX_BACKOFF": "1s"},
		"bad duration":     {"POS_POLL_INTERVAL": "soon"},
		"zero probe":       {"POS_PROBE_INTERVAL": "0s"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := LoadClient()
			require.Error(t, err)
		})
	}
}

func TestLoadRemoteStore(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@db:5432/pos?sslmode=disable")
	t.Setenv("RUN_MIGRATIONS", "false")

	cfg, err := LoadRemoteStore()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.False(t, cfg.RunMigrations)
	assert.Empty(t, cfg.RabbitURL)
	assert.Equal(t, 20, cfg.DefaultPageSize)
}
