package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/taskify/domain"
)

type fakeProvider struct {
	mu         sync.Mutex
	current    *domain.AuthSession
	sessErr    error
	block      chan struct{}
	password   string
	user       *domain.User
	signInErr  error
	signOutErr error
	listeners  map[int]func(Event)
	next       int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		password:  "correct-horse",
		user:      &domain.User{ID: "u1", Email: "ada@example.com"},
		listeners: make(map[int]func(Event)),
	}
}

func (p *fakeProvider) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.sessErr
}

func (p *fakeProvider) OnSessionChange(fn func(Event)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) push(ev Event) {
	p.mu.Lock()
	var fns []func(Event)
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*domain.AuthSession, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	if email != p.user.Email || password != p.password {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.AuthSession{AccessToken: "tok", User: p.user}, nil
}

func (p *fakeProvider) SignUp(_ context.Context, creds domain.Credentials) (*domain.User, error) {
	return &domain.User{ID: "new", Email: creds.Email}, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	return p.signOutErr
}

func assertGuards(t *testing.T, g *Gate, protected, public Decision) {
	t.Helper()
	if got := g.CanEnterProtected(); got != protected {
		t.Errorf("CanEnterProtected = %v, want %v", got, protected)
	}
	if got := g.CanEnterPublicOnly(); got != public {
		t.Errorf("CanEnterPublicOnly = %v, want %v", got, public)
	}
}

func TestUnknownStateWaits(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, time.Second, nil)

	if !g.Current().Loading() {
		t.Fatal("new gate is not loading")
	}
	assertGuards(t, g, Wait, Wait)
}

func TestStartResolvesFromProvider(t *testing.T) {
	p := newFakeProvider()
	p.current = &domain.AuthSession{User: p.user}
	g := NewGate(p, time.Second, nil)

	g.Start(context.Background())
	defer g.Stop()

	if !g.Current().Authenticated() {
		t.Fatalf("state = %v", g.Current().State)
	}
	assertGuards(t, g, Allow, Deny)
}

func TestStartFailsClosed(t *testing.T) {
	p := newFakeProvider()
	p.sessErr = errors.New("network down")
	g := NewGate(p, time.Second, nil)

	g.Start(context.Background())

	if g.Current().State != domain.SessionUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", g.Current().State)
	}
	assertGuards(t, g, Deny, Allow)
}

func TestStartTimesOut(t *testing.T) {
	p := newFakeProvider()
	p.block = make(chan struct{})
	g := NewGate(p, 20*time.Millisecond, nil)

	g.Start(context.Background())

	if g.Current().State != domain.SessionUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated after timeout", g.Current().State)
	}
}

func TestPushDuringCheckWins(t *testing.T) {
	p := newFakeProvider()
	p.current = &domain.AuthSession{User: p.user}
	p.block = make(chan struct{})
	g := NewGate(p, time.Second, nil)

	done := make(chan struct{})
	go func() {
		g.Start(context.Background())
		close(done)
	}()

	// Wait for the subscription, then sign out via push before the check returns.
	deadline := time.Now().Add(time.Second)
	for {
		p.mu.Lock()
		n := len(p.listeners)
		p.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	p.push(Event{Kind: EventSignedOut})
	close(p.block)
	<-done

	if g.Current().State != domain.SessionUnauthenticated {
		t.Fatalf("stale check overrode push: state = %v", g.Current().State)
	}
}

func TestSignInScenario(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, time.Second, nil)
	g.Start(context.Background())
	ctx := context.Background()

	if _, err := g.SignIn(ctx, "ada@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("SignIn(wrong) err = %v", err)
	}
	if g.Current().State != domain.SessionUnauthenticated {
		t.Fatalf("failed sign in changed state to %v", g.Current().State)
	}
	assertGuards(t, g, Deny, Allow)

	user, err := g.SignIn(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("user = %+v", user)
	}
	assertGuards(t, g, Allow, Deny)
}

func TestSignInNetworkErrorKeepsState(t *testing.T) {
	p := newFakeProvider()
	p.current = &domain.AuthSession{User: p.user}
	g := NewGate(p, time.Second, nil)
	g.Start(context.Background())

	p.signInErr = errors.New("connection refused")
	if _, err := g.SignIn(context.Background(), "ada@example.com", "correct-horse"); err == nil {
		t.Fatal("expected error")
	}
	if !g.Current().Authenticated() {
		t.Fatal("network failure changed state")
	}
}

func TestSignInValidatesForm(t *testing.T) {
	g := NewGate(newFakeProvider(), time.Second, nil)
	if _, err := g.SignIn(context.Background(), "not-an-email", "x"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	g := NewGate(newFakeProvider(), time.Second, nil)
	ctx := context.Background()

	bad := []domain.Credentials{
		{Email: "x@example.com", Password: "123"},
		{Email: "x@example.com", Password: "123456", Confirm: "654321"},
		{Email: "", Password: "123456"},
	}
	for _, c := range bad {
		if _, err := g.SignUp(ctx, c); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
			t.Errorf("SignUp(%+v) err = %v", c, err)
		}
	}

	user, err := g.SignUp(ctx, domain.Credentials{Email: "x@example.com", Password: "123456", Confirm: "123456"})
	if err != nil || user.Email != "x@example.com" {
		t.Fatalf("SignUp = %+v, %v", user, err)
	}
	if g.Current().State != domain.SessionUnknown {
		t.Fatal("sign up changed session state")
	}
}

func TestSignOutIsUnconditional(t *testing.T) {
	p := newFakeProvider()
	p.current = &domain.AuthSession{User: p.user}
	p.signOutErr = errors.New("offline")
	g := NewGate(p, time.Second, nil)
	g.Start(context.Background())

	g.SignOut(context.Background())

	if g.Current().State != domain.SessionUnauthenticated {
		t.Fatalf("state = %v", g.Current().State)
	}
}

func TestProviderPushesAndWatchers(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, time.Second, nil)
	g.Start(context.Background())
	defer g.Stop()

	var seen []domain.SessionState
	unwatch := g.Watch(func(v domain.SessionView) { seen = append(seen, v.State) })
	defer unwatch()

	p.push(Event{Kind: EventSignedIn, Session: &domain.AuthSession{User: p.user}})
	p.push(Event{Kind: EventTokenRefreshed, Session: &domain.AuthSession{User: p.user}})
	p.push(Event{Kind: EventSignedOut})

	want := []domain.SessionState{domain.SessionAuthenticated, domain.SessionUnauthenticated}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("watcher saw %v, want %v", seen, want)
	}
}

func TestWatchersFollowTransitionOrder(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, time.Second, nil)
	g.Start(context.Background())
	defer g.Stop()

	var mu sync.Mutex
	var seen []domain.SessionState
	defer g.Watch(func(v domain.SessionView) {
		if cur := g.Current(); cur.State != v.State {
			t.Errorf("delivered %v while the gate is %v", v.State, cur.State)
		}
		mu.Lock()
		seen = append(seen, v.State)
		mu.Unlock()
	})()

	signedIn := Event{Kind: EventSignedIn, Session: &domain.AuthSession{User: p.user}}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.push(signedIn)
		}()
		go func() {
			defer wg.Done()
			g.SignOut(context.Background())
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("watcher saw no transitions")
	}
	if last := seen[len(seen)-1]; last != g.Current().State {
		t.Fatalf("last delivery %v, gate ended %v", last, g.Current().State)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] == seen[i-1] {
			t.Fatalf("watcher saw %v twice in a row: %v", seen[i], seen)
		}
	}
}

func TestGuardsAreComplementsOnceResolved(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, time.Second, nil)
	g.Start(context.Background())

	check := func() {
		prot, pub := g.CanEnterProtected(), g.CanEnterPublicOnly()
		if prot == Wait || pub == Wait || prot == pub {
			t.Fatalf("guards not complementary: %v/%v", prot, pub)
		}
	}
	check()
	p.push(Event{Kind: EventSignedIn, Session: &domain.AuthSession{User: p.user}})
	check()
	g.SignOut(context.Background())
	check()
}

func TestResolvedUnblocks(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Resolved(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolved before start: err = %v", err)
	}

	g.Start(context.Background())
	view, err := g.Resolved(context.Background())
	if err != nil || view.State != domain.SessionUnauthenticated {
		t.Fatalf("Resolved = %+v, %v", view, err)
	}
}
