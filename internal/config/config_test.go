package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libcirc/patronblocks/internal/config"
)

func Test_Load_Defaults(t *testing.T) {
	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.AdapterPGX, cfg.DBAdapter)
	assert.Equal(t, 500, cfg.SyncPageSize)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, 30*time.Minute, cfg.SyncJobTimeout)
	assert.Equal(t, 10, cfg.RetryMaxAttempts)
}

func Test_Load_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DB_ADAPTER", "sqlx")
	t.Setenv("SYNC_PAGE_SIZE", "50")
	t.Setenv("SYNC_INTERVAL", "30s")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, config.AdapterSQLX, cfg.DBAdapter)
	assert.Equal(t, 50, cfg.SyncPageSize)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
}

func Test_Load_UnknownAdapter_Fails(t *testing.T) {
	t.Setenv("DB_ADAPTER", "oracle")

	_, err := config.Load()

	assert.ErrorIs(t, err, config.ErrUnknownDBAdapter)
}
