package repository

import "context"

// SnapshotRepository stores opaque snapshot payloads under string keys.
// Get returns domain.ErrSnapshotNotFound when nothing was written under key.
// Put must replace the previous payload atomically.
type SnapshotRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
}
