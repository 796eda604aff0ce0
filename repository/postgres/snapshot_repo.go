package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

type snapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository keeps one row per snapshot key in the snapshots table.
func NewSnapshotRepository(pool *pgxpool.Pool) repository.SnapshotRepository {
	return &snapshotRepository{pool: pool}
}

func (r *snapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM snapshots WHERE key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (r *snapshotRepository) Put(ctx context.Context, key string, payload []byte) error {
	const query = `
	INSERT INTO snapshots (key, payload, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE
	SET payload = EXCLUDED.payload,
		updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, key, payload)
	return err
}
