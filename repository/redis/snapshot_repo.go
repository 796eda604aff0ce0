package redis

import (
	"context"
	"errors"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

type snapshotRepository struct {
	client redislib.UniversalClient
	prefix string
}

// NewSnapshotRepository stores snapshots as plain string keys without expiry.
func NewSnapshotRepository(client redislib.UniversalClient, prefix string) repository.SnapshotRepository {
	if prefix == "" {
		prefix = "snapshot:"
	}
	return &snapshotRepository{client: client, prefix: prefix}
}

func (r *snapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (r *snapshotRepository) Put(ctx context.Context, key string, payload []byte) error {
	return r.client.Set(ctx, r.prefix+key, payload, 0).Err()
}
