package use_case

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/trunov/imagecache/internal/cache"
	"github.com/trunov/imagecache/internal/codec"
	"github.com/trunov/imagecache/internal/entities"
	"github.com/trunov/imagecache/internal/processor"
)

type Locator interface {
	Locate(ctx context.Context, id entities.ImageIdentifier) (string, error)
}

type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

type VariantCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Store(ctx context.Context, key string, ttl time.Duration, value []byte)
}

type Options struct {
	TTL time.Duration
	// FlightTimeout bounds a shared computation once it no longer follows
	// the caller that started it.
	FlightTimeout time.Duration
	// MaxPixels caps width*height of a resize target; 0 disables the cap.
	MaxPixels int64
	// DedupeInflight lets concurrent misses for one key share a single
	// fetch-and-transform instead of each computing it.
	DedupeInflight bool
}

type useCase struct {
	locator Locator
	store   ObjectStore
	cache   VariantCache
	ttl     time.Duration
	maxPix  int64

	flightTimeout time.Duration

	inflight *singleflight.Group
}

func New(locator Locator, store ObjectStore, variants VariantCache, opts Options) *useCase {
	uc := &useCase{
		locator: locator,
		store:   store,
		cache:   variants,
		ttl:     opts.TTL,
		maxPix:  opts.MaxPixels,

		flightTimeout: opts.FlightTimeout,
	}
	if opts.DedupeInflight {
		uc.inflight = &singleflight.Group{}
	}
	return uc
}

// GetImage serves one variant: from the cache when present, otherwise by
// fetching the original, transforming it and populating the cache. Cache
// trouble never fails the request.
func (c *useCase) GetImage(ctx context.Context, id entities.ImageIdentifier, req entities.TransformRequest) (entities.Variant, error) {
	key := cache.Key(id, req)
	logger := log.Ctx(ctx).With().Str("cache_key", key).Logger()

	if data, ok := c.cache.Get(ctx, key); ok {
		logger.Debug().Msg("cache hit")

		contentType, err := resolveContentType(req, data)
		if err != nil {
			return entities.Variant{}, err
		}
		return entities.Variant{Data: data, ContentType: contentType, CacheKey: key, FromCache: true}, nil
	}
	logger.Debug().Msg("cache miss")

	if c.inflight == nil {
		return c.compute(ctx, ctx, key, id, req)
	}

	// The flight is detached from the leader's cancellation; only the cache
	// write still follows the leader's ctx.
	ch := c.inflight.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		if c.flightTimeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, c.flightTimeout)
			defer cancel()
		}
		return c.compute(flightCtx, ctx, key, id, req)
	})
	select {
	case <-ctx.Done():
		return entities.Variant{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return entities.Variant{}, res.Err
		}
		return res.Val.(entities.Variant), nil
	}
}

// compute fetches and transforms under ctx and populates the cache unless
// abortCtx has ended by then. A panic while decoding or encoding is turned
// into an error so neither the flight nor a warmup worker takes the
// process down.
func (c *useCase) compute(ctx, abortCtx context.Context, key string, id entities.ImageIdentifier, req entities.TransformRequest) (v entities.Variant, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = entities.Variant{}, fmt.Errorf("computing %s: panic: %v", key, r)
		}
	}()

	objectKey, err := c.locator.Locate(ctx, id)
	if err != nil {
		return entities.Variant{}, err
	}

	original, err := c.store.Download(ctx, objectKey)
	if err != nil {
		return entities.Variant{}, err
	}

	data := original
	if ops := processor.BuildOperations(req); len(ops) > 0 {
		data, err = processor.Transform(ctx, original, ops, processor.WithMaxPixels(c.maxPix))
		if err != nil {
			return entities.Variant{}, fmt.Errorf("transform %s: %w", objectKey, err)
		}
	}

	contentType, err := resolveContentType(req, data)
	if err != nil {
		return entities.Variant{}, err
	}

	variant := entities.Variant{Data: data, ContentType: contentType, CacheKey: key}

	// An aborted request must not populate the cache.
	if err := abortCtx.Err(); err != nil {
		if ctx.Err() != nil {
			return entities.Variant{}, err
		}
		log.Ctx(ctx).Debug().Str("cache_key", key).Msg("requester gone, serving shared result uncached")
		return variant, nil
	}
	c.cache.Store(ctx, key, c.ttl, data)

	return variant, nil
}

// resolveContentType prefers the requested format. Otherwise the body is
// sniffed; transformed output must sniff as a known format, while untouched
// originals fall back to generic detection.
func resolveContentType(req entities.TransformRequest, data []byte) (string, error) {
	if req.Format != nil {
		return req.Format.MIMEType(), nil
	}

	format, err := codec.GuessFormat(data)
	if err == nil {
		return format.MIMEType(), nil
	}
	if !req.IsIdentity() {
		return "", fmt.Errorf("sniffing transformed output: %w", err)
	}

	return mimetype.Detect(data).String(), nil
}
