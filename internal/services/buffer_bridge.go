package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/infrastructure/buffer"
	"github.com/fastygo/taskify/usecase"
)

// BufferBridge adapts the processor to the use case port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferProfile(ctx context.Context, profile *domain.Profile) error {
	if b.processor == nil || profile == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		Entity:    buffer.EntityProfile,
		Key:       profile.ID,
		Operation: buffer.OperationUpsert,
		Data:      payload,
		Priority:  3,
	})
}

func (b *BufferBridge) BufferSnapshot(ctx context.Context, key string, payload []byte) error {
	if b.processor == nil || key == "" {
		return domain.ErrInvalidPayload
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		Entity:    buffer.EntitySnapshot,
		Key:       key,
		Operation: buffer.OperationPut,
		Data:      json.RawMessage(payload),
		Priority:  2,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
