package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/trunov/imagecache/internal/entities"
)

// MockUseCase is a mock of the retrieval use case behind the HTTP handler.
type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) GetImage(ctx context.Context, id entities.ImageIdentifier, req entities.TransformRequest) (entities.Variant, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(entities.Variant), args.Error(1)
}
