package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/client/cache"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:2525", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, cache.DriverFile, cfg.Cache.Driver)
	assert.NotEmpty(t, cfg.Cache.Dir)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serverURL: https://vault.example.com/
token: from-file
storeTimeout: 3s
cache:
  driver: redis
  redisAddr: cache:6379
  redisDB: 2
`), 0o600))

	t.Setenv("PDFSYNC_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://vault.example.com", cfg.ServerURL)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, cache.DriverRedis, cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 2, cfg.Cache.RedisDB)
}

func TestLoad_MissingFileIsOptional(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:2525", cfg.ServerURL)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("PDFSYNC_STORE_TIMEOUT", "0s")
	_, err := Load("")
	assert.Error(t, err)
}
