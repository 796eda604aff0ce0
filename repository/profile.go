package repository

import (
	"context"

	"github.com/fastygo/taskify/domain"
)

// ProfileRepository covers the select/update/upsert calls made against the profiles table.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
	Upsert(ctx context.Context, profile *domain.Profile) error
}
