package services

import (
	"context"

	"github.com/fastygo/taskify/internal/infrastructure/buffer"
	"github.com/fastygo/taskify/repository"
)

// SnapshotBuffer is a SnapshotRepository that survives primary outages.
// Writes go through the buffer processor; reads prefer a pending buffered
// payload so callers see their own writes while storage is down.
type SnapshotBuffer struct {
	primary   repository.SnapshotRepository
	processor *BufferProcessor
	bridge    *BufferBridge
}

func NewSnapshotBuffer(primary repository.SnapshotRepository, processor *BufferProcessor) *SnapshotBuffer {
	return &SnapshotBuffer{
		primary:   primary,
		processor: processor,
		bridge:    NewBufferBridge(processor),
	}
}

func (s *SnapshotBuffer) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok, err := s.processor.Pending(buffer.EntitySnapshot, key); err == nil && ok {
		return append([]byte(nil), data...), nil
	}
	return s.primary.Get(ctx, key)
}

func (s *SnapshotBuffer) Put(ctx context.Context, key string, payload []byte) error {
	return s.bridge.BufferSnapshot(ctx, key, payload)
}

var _ repository.SnapshotRepository = (*SnapshotBuffer)(nil)
