// Package identity talks to the hosted auth backend on behalf of the client
// runtime and implements session.Provider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/api/transport"
	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/session"
)

const (
	pathSignIn  = "/api/v1/auth/signin"
	pathSignUp  = "/api/v1/auth/signup"
	pathSession = "/api/v1/auth/session"
	pathSignOut = "/api/v1/auth/signout"
	pathRefresh = "/api/v1/auth/refresh"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  *TokenFile
	// Dial overrides the transport, mainly for in-memory tests.
	Dial fasthttp.DialFunc
}

// Client is a session.Provider backed by the auth HTTP API.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	tokens  *TokenFile
	logger  *zap.Logger

	mu      sync.RWMutex
	current *domain.AuthSession

	subMu  sync.Mutex
	subs   map[int]func(session.Event)
	nextID int
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:         "taskify",
			Dial:         cfg.Dial,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		tokens: cfg.Tokens,
		logger: logger,
		subs:   make(map[int]func(session.Event)),
	}
	if stored, err := cfg.Tokens.Load(); err != nil {
		logger.Warn("ignoring unreadable session file", zap.Error(err))
	} else {
		c.current = stored
	}
	return c
}

// GetSession asks the backend whether the stored token is still valid.
// A rejected token is forgotten and reported as no session.
func (c *Client) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	token := c.token()
	if token == "" {
		return nil, nil
	}

	var out domain.AuthSession
	status, err := c.do(ctx, fasthttp.MethodGet, pathSession, token, nil, &out)
	if status == fasthttp.StatusUnauthorized {
		c.replace(nil, session.EventSignedOut)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		out.AccessToken = token
	}

	c.mu.RLock()
	prev := c.current
	c.mu.RUnlock()
	kind := session.EventKind("")
	if prev == nil || prev.User == nil || out.User == nil || prev.User.ID != out.User.ID || !prev.User.UpdatedAt.Equal(out.User.UpdatedAt) {
		kind = session.EventUserUpdated
	}
	c.replace(&out, kind)
	return &out, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	body := transport.CredentialsRequest{Email: email, Password: password}
	var out domain.AuthSession
	if _, err := c.do(ctx, fasthttp.MethodPost, pathSignIn, "", body, &out); err != nil {
		return nil, err
	}
	c.replace(&out, session.EventSignedIn)
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	body := transport.CredentialsRequest{
		Email:           creds.Email,
		Password:        creds.Password,
		ConfirmPassword: creds.Confirm,
		Metadata:        creds.Metadata,
	}
	var out domain.User
	if _, err := c.do(ctx, fasthttp.MethodPost, pathSignUp, "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignOut revokes the session remotely and always forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.token()
	var err error
	if token != "" {
		status, doErr := c.do(ctx, fasthttp.MethodPost, pathSignOut, token, nil, nil)
		if doErr != nil && status != fasthttp.StatusUnauthorized {
			err = doErr
		}
	}
	c.replace(nil, session.EventSignedOut)
	return err
}

// Refresh extends the current session and swaps in the new token.
func (c *Client) Refresh(ctx context.Context) (*domain.AuthSession, error) {
	token := c.token()
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}
	var out domain.AuthSession
	status, err := c.do(ctx, fasthttp.MethodPost, pathRefresh, token, nil, &out)
	if status == fasthttp.StatusUnauthorized {
		c.replace(nil, session.EventSignedOut)
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	c.replace(&out, session.EventTokenRefreshed)
	return &out, nil
}

// Current returns the locally known session without a network call.
func (c *Client) Current() *domain.AuthSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Client) OnSessionChange(fn func(session.Event)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

// replace swaps the current session, persists it and emits kind. An empty
// kind updates silently. Sign-out events are only emitted when a session
// was actually dropped.
func (c *Client) replace(next *domain.AuthSession, kind session.EventKind) {
	c.mu.Lock()
	had := c.current != nil
	c.current = next
	c.mu.Unlock()

	if err := c.tokens.Save(next); err != nil {
		c.logger.Warn("failed to persist session", zap.Error(err))
	}
	if kind == "" || (kind == session.EventSignedOut && !had) {
		return
	}
	c.emit(session.Event{Kind: kind, Session: next})
}

func (c *Client) emit(ev session.Event) {
	c.subMu.Lock()
	fns := make([]func(session.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// do issues one request and decodes the envelope. The returned status is 0
// when the request never got a response.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(raw)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return 0, context.DeadlineExceeded
		}
		return 0, domain.WrapError(domain.ErrCodeUnavailable, "identity service unreachable", err)
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusNoContent {
		return status, nil
	}
	if err := transport.Decode(resp.Body(), out); err != nil {
		return status, toDomainError(status, err)
	}
	return status, nil
}

func toDomainError(status int, err error) error {
	var apiErr *transport.APIError
	if !errors.As(err, &apiErr) {
		return domain.WrapError(domain.ErrCodeInternal, "unexpected identity response", err)
	}
	code := domain.ErrorCode(apiErr.Code)
	switch code {
	case domain.ErrCodeInvalid, domain.ErrCodeUnauthorized, domain.ErrCodeConflict,
		domain.ErrCodeForbidden, domain.ErrCodeNotFound, domain.ErrCodeUnavailable:
	default:
		if status >= 500 {
			code = domain.ErrCodeUnavailable
		} else {
			code = domain.ErrCodeInternal
		}
	}
	return domain.NewError(code, apiErr.Message)
}

var _ session.Provider = (*Client)(nil)
