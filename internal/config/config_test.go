package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunov/imagecache/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(40_000_000), cfg.Server.MaxPixels)
	assert.Equal(t, "images", cfg.Storage.BucketName)
	assert.True(t, cfg.Storage.PathStyle)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.DedupeInflight)
	assert.False(t, cfg.Warmup.Enabled)
	assert.Equal(t, "imagecache:warmup", cfg.Warmup.Stream)
	assert.Equal(t, 3, cfg.Warmup.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Warmup.BlockTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, `{
		"server": {"port": 9090, "request_timeout": "5s"},
		"storage": {"bucket": "from-file", "endpoint": "http://minio:9000"},
		"redis": {"nodes": [{"host": "r1", "port": 7000}, {"host": "r2", "port": 7001}]},
		"cache": {"ttl": "10m", "dedupe_inflight": true}
	}`)
	t.Setenv("IMAGECACHE_STORAGE_BUCKET", "from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "from-env", cfg.Storage.BucketName)
	assert.Equal(t, "http://minio:9000", cfg.Storage.Endpoint)
	require.Len(t, cfg.Redis.Nodes, 2)
	assert.Equal(t, "r2:7001", cfg.Redis.Nodes[1].Addr())
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.DedupeInflight)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "3000")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		_, err := config.Load(writeFile(t, `{"server": `))
		require.Error(t, err)
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		_, err := config.Load(writeFile(t, `{"cache": {"ttl": "0s"}}`))
		require.ErrorContains(t, err, "cache.ttl")
	})

	t.Run("empty bucket", func(t *testing.T) {
		_, err := config.Load(writeFile(t, `{"storage": {"bucket": ""}}`))
		require.ErrorContains(t, err, "storage.bucket")
	})

	t.Run("negative pixel budget", func(t *testing.T) {
		_, err := config.Load(writeFile(t, `{"server": {"max_pixels": -1}}`))
		require.ErrorContains(t, err, "server.max_pixels")
	})

	t.Run("warmup without workers", func(t *testing.T) {
		_, err := config.Load(writeFile(t, `{"warmup": {"enabled": true, "workers": 0}}`))
		require.ErrorContains(t, err, "warmup")
	})
}
