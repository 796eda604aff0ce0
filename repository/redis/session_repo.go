package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

type sessionRepository struct {
	client redislib.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSessionRepository keeps sessions as JSON values whose key expiry tracks
// Session.ExpiresAt. ttl is used when a session carries no usable expiry.
func NewSessionRepository(client redislib.UniversalClient, prefix string, ttl time.Duration) repository.SessionRepository {
	if prefix == "" {
		prefix = "session:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode session", err)
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}
	expiry := session.ExpiresAt.Sub(now)
	if expiry <= 0 {
		return domain.ErrSessionNotFound
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode session", err)
	}
	return r.client.Set(ctx, r.prefix+session.ID, payload, expiry).Err()
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.client.Del(ctx, r.prefix+id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Extend pushes the key expiry out by ttl from now. The stored ExpiresAt is
// rewritten too so Get reports the new deadline.
func (r *sessionRepository) Extend(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	session, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	session.ExpiresAt = time.Now().Add(ttl)
	payload, err := json.Marshal(session)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode session", err)
	}
	// XX: the key may have expired between Get and Set.
	ok, err := r.client.SetXX(ctx, r.prefix+id, payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}
