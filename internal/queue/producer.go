package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientSource hands out the current redis client.
type ClientSource interface {
	Get() redis.UniversalClient
}

type Producer struct {
	r      ClientSource
	stream string
	maxLen int64
}

func NewProducer(r ClientSource, stream string, maxLen int64) *Producer {
	return &Producer{r: r, stream: stream, maxLen: maxLen}
}

// EnqueueWarm encodes job as JSON and appends it to the stream for
// background processing.
func (p *Producer) EnqueueWarm(ctx context.Context, job WarmJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding warm job: %w", err)
	}
	return p.r.Get().XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]any{
			"payload": string(raw),
			"attempt": 0,
		},
	}).Err()
}
