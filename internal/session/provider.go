package session

import (
	"context"

	"github.com/fastygo/taskify/domain"
)

// EventKind classifies pushes from the identity provider.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// Event is a session change pushed by the provider. Session is nil on sign-out.
type Event struct {
	Kind    EventKind
	Session *domain.AuthSession
}

// Provider is the identity service the gate depends on.
//
// GetSession returns (nil, nil) when there is no active session.
// OnSessionChange callbacks may fire from any goroutine.
type Provider interface {
	GetSession(ctx context.Context) (*domain.AuthSession, error)
	OnSessionChange(fn func(Event)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error)
	SignUp(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	SignOut(ctx context.Context) error
}
