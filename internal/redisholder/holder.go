package redisholder

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// clientBox keeps the stored type fixed while the client inside changes
// between *redis.Client and *redis.ClusterClient across reconnects.
type clientBox struct {
	c redis.UniversalClient
}

// Holder publishes the current redis client; the health loop may replace it
// at any time, so callers should Get per use rather than keep the client.
type Holder struct {
	p atomic.Pointer[clientBox]
}

func NewHolder(initial redis.UniversalClient) *Holder {
	h := &Holder{}
	h.p.Store(&clientBox{c: initial})
	return h
}

func (h *Holder) Get() redis.UniversalClient {
	if b := h.p.Load(); b != nil {
		return b.c
	}
	return nil
}

func (h *Holder) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.Get().Ping(pingCtx).Err()
}

func (h *Holder) swap(newc redis.UniversalClient) (old redis.UniversalClient) {
	if b := h.p.Swap(&clientBox{c: newc}); b != nil {
		return b.c
	}
	return nil
}

func (h *Holder) Close() error {
	if c := h.Get(); c != nil {
		return c.Close()
	}
	return nil
}
