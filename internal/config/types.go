package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Warmup  WarmupConfig  `mapstructure:"warmup"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxPixels       int64         `mapstructure:"max_pixels"` // resize target area cap
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Address, s.Port) }

// StorageConfig points at an S3-compatible object store (MinIO, R2, S3).
type StorageConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	BucketName  string `mapstructure:"bucket"`
	AccessKeyID string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	PathStyle   bool   `mapstructure:"path_style"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type RedisConfig struct {
	URL                 string        `mapstructure:"url"`
	Password            string        `mapstructure:"password"`
	DatabaseID          int           `mapstructure:"database_id"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	PoolSize            int           `mapstructure:"pool_size"`
	Nodes               []RedisNode   `mapstructure:"nodes"`
}

type RedisNode struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type CacheConfig struct {
	Namespace      string        `mapstructure:"namespace"`
	TTL            time.Duration `mapstructure:"ttl"`
	DedupeInflight bool          `mapstructure:"dedupe_inflight"` // share one computation per key
}

// WarmupConfig drives the redis streams consumer that precomputes variants
// ahead of the first request.
type WarmupConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Stream       string        `mapstructure:"stream"`
	Group        string        `mapstructure:"group"`
	Consumer     string        `mapstructure:"consumer"`
	Workers      int           `mapstructure:"workers"`
	MaxLen       int64         `mapstructure:"max_len"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BlockTimeout time.Duration `mapstructure:"block_timeout"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
}

type SentryConfig struct {
	SentryDSN   string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}
