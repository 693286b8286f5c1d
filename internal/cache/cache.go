package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/trunov/imagecache/internal/entities"
)

// ClientSource hands out the current redis client. redisholder.Holder
// satisfies it so reconnects are picked up without rebuilding the cache.
type ClientSource interface {
	Get() redis.UniversalClient
}

type Cache struct {
	Redis     ClientSource
	Namespace string
}

func NewCache(namespace string, redisCl ClientSource) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}

func (c *Cache) key(key string) string {
	if c.Namespace == "" {
		return key
	}
	return c.Namespace + ":" + key
}

// Get returns the cached bytes for key. A miss and a backend failure look the
// same to the caller; failures are only logged.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.Redis.Get().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: get: %w", entities.ErrCache, err)).Str("key", key).Msg("cache lookup failed, treating as miss")
		return nil, false
	}

	return val, true
}

// Store writes value under key unless an entry already exists. It is best
// effort: failures are logged and never returned.
func (c *Cache) Store(ctx context.Context, key string, ttl time.Duration, value []byte) {
	created, err := c.Redis.Get().SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: set: %w", entities.ErrCache, err)).Str("key", key).Msg("cache population failed")
		return
	}
	if !created {
		log.Debug().Str("key", key).Msg("cache entry already present, left untouched")
		return
	}

	log.Debug().Str("key", key).Int("bytes", len(value)).Dur("ttl", ttl).Msg("cached variant")
}

// Ping checks the backing store, for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Redis.Get().Ping(ctx).Err()
}
