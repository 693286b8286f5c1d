package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "IMAGECACHE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_pixels", 40_000_000)

	v.SetDefault("storage.endpoint", "http://localhost:9000")
	v.SetDefault("storage.region", "eu-central-1")
	v.SetDefault("storage.bucket", "images")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.path_style", true)
	v.SetDefault("storage.max_attempts", 1)

	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database_id", 0)
	v.SetDefault("redis.health_check_interval", "30s")
	v.SetDefault("redis.dial_timeout", "10s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.namespace", "imagecache")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.dedupe_inflight", false)

	v.SetDefault("warmup.enabled", false)
	v.SetDefault("warmup.stream", "imagecache:warmup")
	v.SetDefault("warmup.group", "imagecache-warmers")
	v.SetDefault("warmup.consumer", "imagecache-1")
	v.SetDefault("warmup.workers", 2)
	v.SetDefault("warmup.max_len", 10000)
	v.SetDefault("warmup.max_attempts", 3)
	v.SetDefault("warmup.block_timeout", "5s")
	v.SetDefault("warmup.backoff_base", "1s")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads file (JSON) when it exists and overlays IMAGECACHE_* environment
// variables, e.g. IMAGECACHE_REDIS_URL or IMAGECACHE_STORAGE_BUCKET.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", file, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Hosting platforms hand out PORT; an explicit IMAGECACHE_SERVER_PORT wins.
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envPrefix+"_SERVER_PORT") == "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxPixels < 0 {
		return fmt.Errorf("server.max_pixels must not be negative, got %d", c.Server.MaxPixels)
	}
	if c.Storage.BucketName == "" {
		return errors.New("storage.bucket is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Redis.URL == "" && len(c.Redis.Nodes) == 0 {
		return errors.New("either redis.url or redis.nodes is required")
	}
	if c.Warmup.Enabled && (c.Warmup.Workers < 1 || c.Warmup.Stream == "" || c.Warmup.Group == "") {
		return errors.New("warmup needs a stream, a group and at least one worker")
	}
	return nil
}
