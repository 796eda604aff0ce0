package usecase

import (
	"context"

	"github.com/fastygo/taskify/domain"
)

// OperationBuffer parks writes that primary storage rejected so use cases
// stay storage-agnostic.
type OperationBuffer interface {
	BufferProfile(ctx context.Context, profile *domain.Profile) error
	BufferSnapshot(ctx context.Context, key string, payload []byte) error
}
