// Package snapshot serves the per-user task, sprint and retrospective
// snapshots that clients sync with the hosted backend.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/persist"
	"github.com/fastygo/taskify/repository"
	"github.com/fastygo/taskify/usecase"
)

// MaxPayloadBytes bounds a single snapshot upload.
const MaxPayloadBytes = 4 << 20

type UseCase struct {
	snapshots repository.SnapshotRepository
	buffer    usecase.OperationBuffer
	logger    *zap.Logger
}

func New(snapshots repository.SnapshotRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		snapshots: snapshots,
		buffer:    buffer,
		logger:    logger,
	}
}

// Get returns the stored array for userID, or an empty array when nothing
// was uploaded yet.
func (uc *UseCase) Get(ctx context.Context, userID, key string) (json.RawMessage, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	payload, err := uc.snapshots.Get(ctx, storageKey(userID, key))
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return json.RawMessage("[]"), nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Put replaces the snapshot. The payload must be a JSON array.
func (uc *UseCase) Put(ctx context.Context, userID, key string, payload []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if len(payload) > MaxPayloadBytes {
		return domain.Invalid("payload", "too large")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "payload must be a JSON array", err)
	}

	k := storageKey(userID, key)
	if err := uc.snapshots.Put(ctx, k, payload); err != nil {
		if uc.buffer == nil {
			return err
		}
		if bufErr := uc.buffer.BufferSnapshot(ctx, k, payload); bufErr != nil {
			uc.logger.Error("failed to buffer snapshot", zap.String("key", k), zap.Error(bufErr))
			return err
		}
		uc.logger.Warn("snapshot buffered due to repository error", zap.String("key", k), zap.Error(err))
	}
	return nil
}

func validKey(key string) error {
	switch key {
	case persist.KeyTasks, persist.KeySprints, persist.KeyRetrospectives:
		return nil
	default:
		return domain.Invalid("key", "unknown snapshot "+key)
	}
}

func storageKey(userID, key string) string {
	return "user:" + userID + "/" + key
}
