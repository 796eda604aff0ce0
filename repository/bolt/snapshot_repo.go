package bolt

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

const defaultBucket = "snapshots"

// SnapshotRepository keeps snapshots in a local BoltDB file, one key per snapshot.
type SnapshotRepository struct {
	db     *bolt.DB
	bucket []byte
}

// Open creates (or reopens) the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*SnapshotRepository, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &SnapshotRepository{db: db, bucket: []byte(bucket)}, nil
}

func (r *SnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if r == nil || r.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(r.bucket).Get([]byte(key))
		if v == nil {
			return domain.ErrSnapshotNotFound
		}
		// v is only valid inside the transaction.
		payload = append([]byte(nil), v...)
		return nil
	})
	return payload, err
}

func (r *SnapshotRepository) Put(ctx context.Context, key string, payload []byte) error {
	if r == nil || r.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(r.bucket).Put([]byte(key), payload)
	})
}

// Keys lists stored snapshot keys in byte order.
func (r *SnapshotRepository) Keys() ([]string, error) {
	if r == nil || r.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var keys []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(r.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Ping verifies the database is still readable.
func (r *SnapshotRepository) Ping() error {
	if r == nil || r.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return r.db.View(func(tx *bolt.Tx) error { return nil })
}

func (r *SnapshotRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)
