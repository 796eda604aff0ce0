package domain

import "time"

// Session represents a cached authentication session stored in Redis.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// AuthSession is what the identity provider hands to clients after sign-in.
type AuthSession struct {
	AccessToken string    `json:"access_token"`
	Session     *Session  `json:"session"`
	User        *User     `json:"user"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionState is the tag of the client-side authentication state.
type SessionState int

const (
	SessionUnknown SessionState = iota
	SessionAuthenticated
	SessionUnauthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionAuthenticated:
		return "authenticated"
	case SessionUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// SessionView is an immutable snapshot of the client session. User is set
// only when State is SessionAuthenticated.
type SessionView struct {
	State SessionState `json:"-"`
	User  *User        `json:"user,omitempty"`
}

func (v SessionView) Authenticated() bool {
	return v.State == SessionAuthenticated && v.User != nil
}

func (v SessionView) Loading() bool {
	return v.State == SessionUnknown
}
