package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns the profiles table adapter.
func NewProfileRepository(pool *pgxpool.Pool) repository.ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `
	SELECT id, username, first_name, last_name, avatar_url, bio, role, created_at, updated_at
	FROM profiles
	WHERE id = $1
	`
	var (
		p                                  domain.Profile
		username, first, last, avatar, bio *string
		role                               *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &username, &first, &last, &avatar, &bio, &role, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	p.Username = derefString(username)
	p.FirstName = derefString(first)
	p.LastName = derefString(last)
	p.AvatarURL = derefString(avatar)
	p.Bio = derefString(bio)
	p.Role = derefString(role)
	return &p, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE profiles
	SET username = $2,
		first_name = $3,
		last_name = $4,
		avatar_url = $5,
		bio = $6,
		updated_at = NOW()
	WHERE id = $1
	RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		profile.ID,
		nullString(profile.Username),
		nullString(profile.FirstName),
		nullString(profile.LastName),
		nullString(profile.AvatarURL),
		nullString(profile.Bio),
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProfileNotFound
	}
	return err
}

func (r *profileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO profiles (id, username, first_name, last_name, avatar_url, bio, role, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		avatar_url = EXCLUDED.avatar_url,
		bio = EXCLUDED.bio,
		role = EXCLUDED.role,
		updated_at = NOW()
	RETURNING created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		profile.ID,
		nullString(profile.Username),
		nullString(profile.FirstName),
		nullString(profile.LastName),
		nullString(profile.AvatarURL),
		nullString(profile.Bio),
		nullString(profile.Role),
		nullTime(profile.CreatedAt),
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
}
