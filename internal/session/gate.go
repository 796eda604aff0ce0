// Package session implements the client-side authentication gate: a small
// state machine fed by the identity provider, consulted by route guards.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
)

// Decision is a route guard verdict.
type Decision int

const (
	// Wait means the session is still being resolved; show a neutral screen.
	Wait Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "wait"
	}
}

// Gate tracks Unknown | Authenticated(user) | Unauthenticated.
type Gate struct {
	provider Provider
	logger   *zap.Logger
	timeout  time.Duration

	// notify is held from a transition until its watchers return and is
	// always taken before mu.
	notify sync.Mutex

	mu       sync.RWMutex
	view     domain.SessionView
	gen      uint64
	resolved chan struct{}
	watchers map[int]func(domain.SessionView)
	nextID   int
	stop     func()
}

// NewGate creates a gate in the Unknown state. timeout bounds every provider
// call; zero means 10s.
func NewGate(provider Provider, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		provider: provider,
		logger:   logger,
		timeout:  timeout,
		view:     domain.SessionView{State: domain.SessionUnknown},
		resolved: make(chan struct{}),
		watchers: make(map[int]func(domain.SessionView)),
	}
}

// Start subscribes to provider pushes and resolves the initial session.
// A failed check fails closed to Unauthenticated.
func (g *Gate) Start(ctx context.Context) {
	g.mu.RLock()
	startGen := g.gen
	g.mu.RUnlock()

	unsubscribe := g.provider.OnSessionChange(g.handleEvent)
	g.mu.Lock()
	g.stop = unsubscribe
	g.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	auth, err := g.provider.GetSession(callCtx)
	if err != nil {
		g.logger.Warn("session check failed, treating as signed out", zap.Error(err))
		auth = nil
	}

	// A push that arrived while the check was in flight is newer; keep it.
	g.lockTransition()
	if g.gen != startGen {
		g.mu.Unlock()
		g.notify.Unlock()
		return
	}
	g.setLocked(viewFor(auth))
}

// Stop detaches from the provider.
func (g *Gate) Stop() {
	g.mu.Lock()
	stop := g.stop
	g.stop = nil
	g.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Current returns the present session snapshot.
func (g *Gate) Current() domain.SessionView {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.view
}

// Resolved blocks until the state leaves Unknown or ctx ends.
func (g *Gate) Resolved(ctx context.Context) (domain.SessionView, error) {
	g.mu.RLock()
	ch := g.resolved
	g.mu.RUnlock()
	select {
	case <-ch:
		return g.Current(), nil
	case <-ctx.Done():
		return g.Current(), ctx.Err()
	}
}

// CanEnterProtected allows only an authenticated session.
func (g *Gate) CanEnterProtected() Decision {
	switch g.Current().State {
	case domain.SessionAuthenticated:
		return Allow
	case domain.SessionUnauthenticated:
		return Deny
	default:
		return Wait
	}
}

// CanEnterPublicOnly allows sign-in style pages only to signed-out users.
func (g *Gate) CanEnterPublicOnly() Decision {
	switch g.Current().State {
	case domain.SessionAuthenticated:
		return Deny
	case domain.SessionUnauthenticated:
		return Allow
	default:
		return Wait
	}
}

// SignIn authenticates with email and password. On any failure the current
// state is left untouched and the error is returned to the caller.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	creds := domain.Credentials{Email: email, Password: password}
	if err := creds.ValidateSignIn(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	auth, err := g.provider.SignInWithPassword(callCtx, email, password)
	if err != nil {
		g.logger.Info("sign in failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if auth == nil || auth.User == nil {
		return nil, domain.ErrInvalidCredentials
	}

	g.lockTransition()
	g.gen++
	g.setLocked(viewFor(auth))
	return auth.User, nil
}

// SignUp registers a new account. The session is not changed; the new user
// signs in separately.
func (g *Gate) SignUp(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := creds.ValidateSignUp(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	user, err := g.provider.SignUp(callCtx, creds)
	if err != nil {
		g.logger.Info("sign up failed", zap.String("email", creds.Email), zap.Error(err))
		return nil, err
	}
	return user, nil
}

// SignOut always ends Unauthenticated; provider errors are only logged.
func (g *Gate) SignOut(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.provider.SignOut(callCtx); err != nil {
		g.logger.Warn("provider sign out failed", zap.Error(err))
	}

	g.lockTransition()
	g.gen++
	g.setLocked(domain.SessionView{State: domain.SessionUnauthenticated})
}

// Watch registers fn for every state change. Watchers run one transition at a
// time in the order the transitions happened; they may read the gate but must
// not sign in or out.
func (g *Gate) Watch(fn func(domain.SessionView)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.watchers[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.watchers, id)
			g.mu.Unlock()
		})
	}
}

func (g *Gate) handleEvent(ev Event) {
	g.logger.Debug("session event", zap.String("kind", string(ev.Kind)))
	g.lockTransition()
	g.gen++
	if ev.Kind == EventSignedOut {
		g.setLocked(domain.SessionView{State: domain.SessionUnauthenticated})
		return
	}
	g.setLocked(viewFor(ev.Session))
}

func (g *Gate) lockTransition() {
	g.notify.Lock()
	g.mu.Lock()
}

// setLocked installs view, releases g.mu, notifies watchers when the state or
// user changed and then releases g.notify.
func (g *Gate) setLocked(view domain.SessionView) {
	prev := g.view
	g.view = view
	if prev.State == domain.SessionUnknown && view.State != domain.SessionUnknown {
		close(g.resolved)
	}
	changed := prev.State != view.State || userID(prev.User) != userID(view.User)
	var fns []func(domain.SessionView)
	if changed {
		fns = make([]func(domain.SessionView), 0, len(g.watchers))
		for _, fn := range g.watchers {
			fns = append(fns, fn)
		}
	}
	g.mu.Unlock()

	if changed {
		g.logger.Info("session state changed",
			zap.Stringer("from", prev.State),
			zap.Stringer("to", view.State))
	}
	for _, fn := range fns {
		fn(view)
	}
	g.notify.Unlock()
}

func viewFor(auth *domain.AuthSession) domain.SessionView {
	if auth == nil || auth.User == nil {
		return domain.SessionView{State: domain.SessionUnauthenticated}
	}
	return domain.SessionView{State: domain.SessionAuthenticated, User: auth.User}
}

func userID(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
