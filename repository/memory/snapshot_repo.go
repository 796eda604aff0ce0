// Package memory provides an in-process snapshot repository used for
// ephemeral sessions and tests.
package memory

import (
	"context"
	"sync"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

type SnapshotRepository struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes int
	err    error
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{data: make(map[string][]byte)}
}

func (r *SnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.data[key]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return append([]byte(nil), v...), nil
}

func (r *SnapshotRepository) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.data[key] = append([]byte(nil), payload...)
	r.writes++
	return nil
}

// SetError makes every following call fail with err until cleared with nil.
func (r *SnapshotRepository) SetError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Writes counts successful Put calls.
func (r *SnapshotRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// Raw returns the stored payload without error injection.
func (r *SnapshotRepository) Raw(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	return v, ok
}

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)
