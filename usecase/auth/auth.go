package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/repository"
)

// Config controls token signing and session lifetime.
type Config struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
}

// Claims is the JWT payload handed to clients.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type UseCase struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &UseCase{
		users:    users,
		profiles: profiles,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// SignUp registers a new account. It does not open a session.
func (uc *UseCase) SignUp(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := creds.ValidateSignUp(); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	if _, err := uc.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "hash password", err)
	}

	now := uc.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         "user",
		Status:       "active",
		Metadata:     creds.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if uc.profiles != nil {
		if err := uc.profiles.Upsert(ctx, profileFromMetadata(user)); err != nil {
			uc.logger.Warn("profile creation failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	uc.logger.Info("user signed up", zap.String("user_id", user.ID))
	return user, nil
}

// SignIn verifies the password and opens a session.
func (uc *UseCase) SignIn(ctx context.Context, creds domain.Credentials) (*domain.AuthSession, error) {
	if err := creds.ValidateSignIn(); err != nil {
		return nil, err
	}
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.NewError(domain.ErrCodeForbidden, "account disabled")
	}

	session, err := uc.CreateSession(ctx, user.ID, uc.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return uc.issue(user, session)
}

// Authenticate resolves a bearer token into the live session behind it.
func (uc *UseCase) Authenticate(ctx context.Context, token string) (*domain.AuthSession, error) {
	claims, err := uc.ParseToken(token)
	if err != nil {
		return nil, err
	}
	session, err := uc.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.AuthSession{
		AccessToken: token,
		Session:     session,
		User:        user,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Refresh extends the session and returns a fresh token.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	session, err := uc.RefreshSession(ctx, sessionID, uc.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return uc.issue(user, session)
}

// ParseToken validates signature, issuer and expiry.
func (uc *UseCase) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return []byte(uc.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid token", err)
	}
	if uc.cfg.Issuer != "" && !claims.VerifyIssuer(uc.cfg.Issuer, true) {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (uc *UseCase) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) (*domain.Session, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, ttl); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.now().Add(ttl)
	return session, nil
}

// RevokeSession deletes the session. Unknown sessions are not an error.
func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	if err := uc.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

func (uc *UseCase) issue(user *domain.User, session *domain.Session) (*domain.AuthSession, error) {
	claims := Claims{
		UserID:    user.ID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    uc.cfg.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(uc.now()),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.cfg.Secret))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "sign token", err)
	}
	return &domain.AuthSession{
		AccessToken: token,
		Session:     session,
		User:        user,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// profileFromMetadata seeds the profile row from sign-up metadata.
func profileFromMetadata(user *domain.User) *domain.Profile {
	p := &domain.Profile{
		ID:        user.ID,
		Username:  user.Metadata["username"],
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if full := strings.TrimSpace(user.Metadata["full_name"]); full != "" {
		first, last, _ := strings.Cut(full, " ")
		p.FirstName, p.LastName = first, strings.TrimSpace(last)
	}
	if v := user.Metadata["first_name"]; v != "" {
		p.FirstName = v
	}
	if v := user.Metadata["last_name"]; v != "" {
		p.LastName = v
	}
	return p
}
