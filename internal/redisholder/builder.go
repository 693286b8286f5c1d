package redisholder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/trunov/imagecache/internal/config"
)

const pingTimeout = 2 * time.Second

// Build connects to redis and starts a health loop that swaps in a fresh
// client whenever the current one stops answering. With nodes configured a
// cluster client is tried first, falling back to the first reachable node;
// otherwise redis.url is used.
func Build(ctx context.Context, cfg *config.RedisConfig) (*Holder, error) {
	cl, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	h := NewHolder(cl)

	if cfg.HealthCheckInterval > 0 {
		go healthLoop(ctx, h, cfg)
	}

	return h, nil
}

func connect(ctx context.Context, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Nodes) == 0 {
		return newURLClient(ctx, cfg)
	}

	cl, err := newClusterClient(ctx, cfg)
	if err == nil {
		return cl, nil
	}

	single, singleErr := newClient(ctx, cfg)
	if singleErr != nil {
		return nil, errors.Join(err, singleErr)
	}
	log.Warn().Err(err).Msg("redis: cluster client failed; using single-node client")
	return single, nil
}

func healthLoop(ctx context.Context, h *Holder, cfg *config.RedisConfig) {
	log.Info().Dur("interval", cfg.HealthCheckInterval).Msg("redis: health loop started")

	ping := func() {
		err := h.Ping(ctx)
		if err == nil {
			log.Debug().Msg("redis: ping ok")
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("redis: ping failed; attempting reconnect")

		newCl, err := connect(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("redis: reconnect failed")
			return
		}

		if old := h.swap(newCl); old != nil {
			_ = old.Close()
		}
		log.Info().Msg("redis: reconnected")
	}

	t := time.NewTicker(cfg.HealthCheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("redis: health loop stopped")
			return
		case <-t.C:
			ping()
		}
	}
}

func newURLClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	applyTimeouts(opts, cfg)

	cl := redis.NewClient(opts)
	if err := pingClient(ctx, cl); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("error pinging redis server: %w", err)
	}

	return cl, nil
}

func newClusterClient(ctx context.Context, cfg *config.RedisConfig) (*redis.ClusterClient, error) {
	nodeAddrs := make([]string, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		nodeAddrs = append(nodeAddrs, node.Addr())
	}

	cl := redis.NewClusterClient(&redis.ClusterOptions{
		RouteByLatency: true,
		Password:       cfg.Password,
		Addrs:          nodeAddrs,
		DialTimeout:    cfg.DialTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PoolSize:       cfg.PoolSize,
		PoolTimeout:    30 * time.Second,
	})

	if err := pingClient(ctx, cl); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("error pinging redis cluster: %w", err)
	}

	return cl, nil
}

func newClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	var stickyErr = errors.New("no nodes defined")

	for _, node := range cfg.Nodes {
		opts := &redis.Options{
			Addr:     node.Addr(),
			Password: cfg.Password,
			DB:       cfg.DatabaseID,
		}
		applyTimeouts(opts, cfg)

		cl := redis.NewClient(opts)
		if err := pingClient(ctx, cl); err != nil {
			_ = cl.Close()
			stickyErr = fmt.Errorf("error pinging redis server %s: %w", node.Addr(), err)
			continue
		}

		return cl, nil
	}

	return nil, stickyErr
}

func applyTimeouts(opts *redis.Options, cfg *config.RedisConfig) {
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
}

func pingClient(ctx context.Context, cl redis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return cl.Ping(pingCtx).Err()
}
