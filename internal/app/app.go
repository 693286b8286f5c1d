package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/trunov/imagecache/internal/cache"
	"github.com/trunov/imagecache/internal/config"
	"github.com/trunov/imagecache/internal/locator"
	"github.com/trunov/imagecache/internal/queue"
	"github.com/trunov/imagecache/internal/redisholder"
	"github.com/trunov/imagecache/internal/s3store"
	"github.com/trunov/imagecache/internal/transport/handler"
	"github.com/trunov/imagecache/internal/transport/router"
	use_case "github.com/trunov/imagecache/internal/use-case"
)

type App struct {
	HttpServer *http.Server

	cfg   *config.Config
	redis *redisholder.Holder
}

// New connects to redis and the object store and assembles the HTTP server.
// ctx bounds the lifetime of the redis health loop.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	holder, err := redisholder.Build(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	store, err := s3store.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		_ = holder.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}

	variants := cache.NewCache(cfg.Cache.Namespace, holder)

	uc := use_case.New(locator.New(store), store, variants, use_case.Options{
		TTL:            cfg.Cache.TTL,
		FlightTimeout:  cfg.Server.RequestTimeout,
		MaxPixels:      cfg.Server.MaxPixels,
		DedupeInflight: cfg.Cache.DedupeInflight,
	})

	h := handler.New(uc, map[string]handler.Pinger{
		"redis":   holder,
		"storage": store,
	})
	if cfg.Warmup.Enabled {
		h.WithWarmup(queue.Init(ctx, holder, cfg.Warmup, uc))
	}
	r := router.NewRouter(h, cfg.Server.RequestTimeout)

	s := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		HttpServer: s,
		cfg:        cfg,
		redis:      holder,
	}, nil
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.HttpServer.Addr).Msg("starting server")
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = a.redis.Close()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.HttpServer.Shutdown(shutdownCtx)
	if cerr := a.redis.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("closing redis client")
	}
	return err
}
