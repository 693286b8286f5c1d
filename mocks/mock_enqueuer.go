package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/trunov/imagecache/internal/queue"
)

// MockEnqueuer is a mock of the warmup stream producer.
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueWarm(ctx context.Context, job queue.WarmJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}
