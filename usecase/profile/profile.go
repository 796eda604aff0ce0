package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
	"github.com/fastygo/taskify/usecase"
)

// Patch carries the editable profile fields. Nil fields are left unchanged.
type Patch struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
}

type UseCase struct {
	profiles repository.ProfileRepository
	buffer   usecase.OperationBuffer
	logger   *zap.Logger
}

func New(profiles repository.ProfileRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		profiles: profiles,
		buffer:   buffer,
		logger:   logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return uc.profiles.GetByID(ctx, userID)
}

// UpdateProfile applies patch to the stored profile, creating it if the user
// has none yet. When the write fails the update is buffered and returned as
// applied.
func (uc *UseCase) UpdateProfile(ctx context.Context, userID string, patch Patch) (*domain.Profile, error) {
	current, err := uc.profiles.GetByID(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		current = &domain.Profile{ID: userID, CreatedAt: time.Now().UTC()}
	case err != nil:
		return nil, err
	}

	apply(current, patch)
	current.UpdatedAt = time.Now().UTC()

	if err := uc.profiles.Upsert(ctx, current); err != nil {
		if uc.buffer == nil {
			return nil, err
		}
		if bufErr := uc.buffer.BufferProfile(ctx, current); bufErr != nil {
			uc.logger.Error("failed to buffer profile update", zap.String("user_id", userID), zap.Error(bufErr))
			return nil, err
		}
		uc.logger.Warn("profile update buffered due to repository error", zap.String("user_id", userID), zap.Error(err))
	}
	return current, nil
}

func apply(p *domain.Profile, patch Patch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.Username, patch.Username)
	set(&p.FirstName, patch.FirstName)
	set(&p.LastName, patch.LastName)
	set(&p.AvatarURL, patch.AvatarURL)
	set(&p.Bio, patch.Bio)
}
