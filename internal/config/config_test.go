package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "tenantcore-dev", cfg.Store.TableName)
	assert.Equal(t, 50, cfg.Data.DefaultPageSize)
	assert.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
server:
  addr: ":9000"
store:
  tableName: tenantcore-prod
  cacheTableName: tenantcore-cache-prod
data:
  defaultPageSize: 100
  dataEditLockMinutes: 30
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Production, cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "tenantcore-prod", cfg.Store.TableName)
	assert.Equal(t, 100, cfg.Data.DefaultPageSize)
	assert.Equal(t, 30, cfg.Data.DataEditLockMinutes)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("DATA_EDIT_LOCK_MINUTES", "45")
	t.Setenv("CACHE_DEFAULT_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Staging, cfg.Environment)
	assert.Equal(t, "from-env", cfg.Store.TableName)
	assert.Equal(t, 45, cfg.Data.DataEditLockMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
}

func TestLoadValidation(t *testing.T) {
	t.Run("unknown environment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "sandbox")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("page size out of range", func(t *testing.T) {
		t.Setenv("DEFAULT_PAGE_SIZE", "5000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
		_, err := Load()
		assert.Error(t, err)
	})
}
