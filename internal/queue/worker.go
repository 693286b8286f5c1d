package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/trunov/imagecache/internal/config"
	"github.com/trunov/imagecache/internal/entities"
)

// Warmer computes a variant and leaves it in the cache.
type Warmer interface {
	GetImage(ctx context.Context, id entities.ImageIdentifier, req entities.TransformRequest) (entities.Variant, error)
}

type Worker struct {
	rc     ClientSource
	cfg    config.WarmupConfig
	warmer Warmer
}

func Init(ctx context.Context, rc ClientSource, cfg config.WarmupConfig, warmer Warmer) *Producer {
	producer := NewProducer(rc, cfg.Stream, cfg.MaxLen)
	worker := NewWorker(rc, cfg, warmer)

	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("warmup worker stopped")
		}
	}()

	return producer
}

func NewWorker(rc ClientSource, cfg config.WarmupConfig, warmer Warmer) *Worker {
	return &Worker{
		rc:     rc,
		cfg:    cfg,
		warmer: warmer,
	}
}

func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.rc.Get().XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "0").Err()
	// BUSYGROUP means the group already exists.
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to ensure redis group: %w", err)
	}

	logger := log.With().Str("stream", w.cfg.Stream).Str("group", w.cfg.Group).Logger()
	logger.Info().Int("workers", w.cfg.Workers).Msg("starting warmup consumers")

	w.autoClaim(ctx)

	errCh := make(chan error, w.cfg.Workers)
	for i := 0; i < w.cfg.Workers; i++ {
		id := i
		go func() {
			err := w.loop(ctx)
			if err != nil {
				logger.Error().Err(err).Int("worker", id).Msg("warmup worker exited")
			}
			errCh <- err
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker loop exited with error: %w", err)
		}
		return nil
	}
}

// autoClaim adopts messages delivered to a consumer that died before XACK
// and processes them, so a crash never loses a job.
func (w *Worker) autoClaim(ctx context.Context) {
	next := "0-0"

	// Don't steal messages still being processed by slow workers.
	minIdle := 30 * time.Second
	if t := w.cfg.BlockTimeout * 6; t > minIdle {
		minIdle = t
	}

	for {
		msgs, start, err := w.rc.Get().XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.cfg.Stream,
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			MinIdle:  minIdle,
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil || len(msgs) == 0 {
			return
		}
		for _, m := range msgs {
			_ = w.handle(ctx, m)
		}
		if start == "0-0" {
			return
		}
		next = start
	}
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		// Delivered messages stay pending until handle acks them.
		streams, err := w.rc.Get().XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, ">"},
			Count:    1,
			Block:    w.cfg.BlockTimeout,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("stream", w.cfg.Stream).Msg("reading warmup stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				_ = w.handle(ctx, m)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, m redis.XMessage) error {
	defer w.rc.Get().XAck(ctx, w.cfg.Stream, w.cfg.Group, m.ID)

	logger := log.With().Str("message_id", m.ID).Logger()

	raw, ok := m.Values["payload"].(string)
	if !ok {
		logger.Warn().Msg("dropping warm job without payload")
		return nil
	}
	var job WarmJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		logger.Warn().Err(err).Msg("dropping undecodable warm job")
		return nil
	}
	attempt := toInt(m.Values["attempt"])

	err := w.process(ctx, job)
	if err == nil {
		logger.Debug().Str("identifier", job.Identifier).Msg("variant warmed")
		return nil
	}
	if ctx.Err() != nil {
		// Shutting down: the ack above fails with ctx, so the message stays
		// pending and autoClaim picks it up on the next start.
		logger.Debug().Err(err).Str("identifier", job.Identifier).Msg("warm job interrupted")
		return err
	}
	if permanent(err) {
		logger.Warn().Err(err).Str("identifier", job.Identifier).Msg("dropping warm job")
		return nil
	}
	if attempt+1 >= w.cfg.MaxAttempts {
		logger.Error().Err(err).Str("identifier", job.Identifier).Int("attempts", attempt+1).Msg("giving up on warm job")
		sentry.CaptureException(err)
		return nil
	}

	// Exponential backoff requeue.
	backoff := w.cfg.BackoffBase << attempt
	time.AfterFunc(backoff, func() {
		_ = w.rc.Get().XAdd(context.Background(), &redis.XAddArgs{
			Stream: w.cfg.Stream,
			MaxLen: w.cfg.MaxLen,
			Values: map[string]any{
				"payload": raw,
				"attempt": attempt + 1,
			},
		}).Err()
	})
	return err
}

func (w *Worker) process(ctx context.Context, job WarmJob) error {
	req, err := job.Request()
	if err != nil {
		return err
	}
	if _, err := w.warmer.GetImage(ctx, job.Identifier, req); err != nil {
		return fmt.Errorf("warm %s: %w", job.Identifier, err)
	}
	return nil
}

// permanent errors fail the same way on every retry.
func permanent(err error) bool {
	return errors.Is(err, entities.ErrNotFound) ||
		errors.Is(err, entities.ErrInvalidParams) ||
		errors.Is(err, entities.ErrUnknownFormat) ||
		errors.Is(err, entities.ErrInvalidDimensions)
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		x, _ := strconv.Atoi(t)
		return x
	default:
		return 0
	}
}
