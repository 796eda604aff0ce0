package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

// Authenticator resolves a bearer token into a live session. usecase/auth
// implements it by verifying the JWT and the session stored in Redis.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.AuthSession, error)
}

// JWTAuth rejects requests without a valid, unrevoked bearer token and
// exposes the user and session ids to handlers.
func JWTAuth(auth Authenticator, timeout time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := extractToken(ctx)
			if token == "" {
				reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing bearer token")
				return
			}

			callCtx, cancel := context.WithTimeout(context.Background(), timeout)
			session, err := auth.Authenticate(callCtx, token)
			cancel()
			if err != nil {
				if domain.IsDomainError(err, domain.ErrCodeUnauthorized) || domain.IsDomainError(err, domain.ErrCodeNotFound) {
					logger.Debug("rejected bearer token", zap.Error(err))
					reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid or expired session")
					return
				}
				logger.Error("session lookup failed", zap.Error(err))
				reject(ctx, fasthttp.StatusServiceUnavailable, domain.ErrCodeUnavailable, "session store unavailable")
				return
			}

			ctx.SetUserValue(httpcontext.UserValueUserID, session.User.ID)
			ctx.SetUserValue(httpcontext.UserValueSessionID, session.Session.ID)
			ctx.SetUserValue(userValueAuthSession, session)
			next(ctx)
		}
	}
}

const userValueAuthSession = "auth_session"

// AuthSession returns the session resolved by JWTAuth.
func AuthSession(ctx *fasthttp.RequestCtx) *domain.AuthSession {
	s, _ := ctx.UserValue(userValueAuthSession).(*domain.AuthSession)
	return s
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
