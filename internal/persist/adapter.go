// Package persist turns a raw snapshot repository into typed, namespaced
// snapshot load/save calls and reports failed writes.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

// Snapshot keys.
const (
	KeyTasks          = "tasks"
	KeySprints        = "sprints"
	KeyRetrospectives = "retrospectives"
)

// ErrPersistFailed marks an in-memory mutation whose snapshot could not be written.
var ErrPersistFailed = domain.NewError(domain.ErrCodeUnavailable, "snapshot not persisted")

// Adapter reads and writes whole snapshots under a namespace.
type Adapter struct {
	repo      repository.SnapshotRepository
	namespace string
	notifier  *Notifier
	logger    *zap.Logger
}

// NewAdapter wires a repository. notifier may be nil.
func NewAdapter(repo repository.SnapshotRepository, namespace string, notifier *Notifier, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		repo:      repo,
		namespace: namespace,
		notifier:  notifier,
		logger:    logger,
	}
}

// Key returns the namespaced repository key.
func (a *Adapter) Key(key string) string {
	if a.namespace == "" {
		return key
	}
	return a.namespace + "/" + key
}

// Notifier returns the failure channel owner, possibly nil.
func (a *Adapter) Notifier() *Notifier {
	return a.notifier
}

// Load decodes the snapshot stored under key. found is false, with a nil
// error, when nothing has been written yet.
func Load[T any](ctx context.Context, a *Adapter, key string) (records []T, found bool, err error) {
	payload, err := a.repo.Get(ctx, a.Key(key))
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return nil, false, nil
		}
		a.logger.Error("snapshot load failed", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}

	if err := json.Unmarshal(payload, &records); err != nil {
		a.logger.Error("snapshot decode failed", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, true, nil
}

// Save encodes records and overwrites the snapshot under key. A failure is
// logged, published on the notifier and returned wrapped in ErrPersistFailed.
func Save[T any](ctx context.Context, a *Adapter, key string, records []T) error {
	if records == nil {
		records = []T{}
	}
	payload, err := json.Marshal(records)
	if err == nil {
		err = a.repo.Put(ctx, a.Key(key), payload)
	}
	if err != nil {
		a.logger.Warn("snapshot save failed", zap.String("key", key), zap.Int("records", len(records)), zap.Error(err))
		a.notifier.Publish(Failure{Key: key, Err: err, At: time.Now()})
		return domain.WrapError(domain.ErrCodeUnavailable, fmt.Sprintf("persist %s", key), errors.Join(ErrPersistFailed, err))
	}
	return nil
}
