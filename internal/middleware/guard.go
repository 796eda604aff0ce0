package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/session"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

// RouteGate is the part of session.Gate the guards need.
type RouteGate interface {
	CanEnterProtected() session.Decision
	CanEnterPublicOnly() session.Decision
	Current() domain.SessionView
}

// RequireSession admits only authenticated callers. While the initial
// session check is still running it answers 503 with Retry-After.
func RequireSession(gate RouteGate, retryAfter time.Duration) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			switch gate.CanEnterProtected() {
			case session.Allow:
				if u := gate.Current().User; u != nil {
					ctx.SetUserValue(httpcontext.UserValueUserID, u.ID)
				}
				next(ctx)
			case session.Wait:
				waitResponse(ctx, retryAfter)
			default:
				reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "sign in required")
			}
		}
	}
}

// PublicOnly admits only unauthenticated callers, e.g. the sign-in form.
func PublicOnly(gate RouteGate, retryAfter time.Duration) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			switch gate.CanEnterPublicOnly() {
			case session.Allow:
				next(ctx)
			case session.Wait:
				waitResponse(ctx, retryAfter)
			default:
				reject(ctx, fasthttp.StatusConflict, domain.ErrCodeConflict, domain.ErrAlreadySignedIn.Message)
			}
		}
	}
}

func waitResponse(ctx *fasthttp.RequestCtx, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	ctx.Response.Header.Set(fasthttp.HeaderRetryAfter, strconv.Itoa(secs))
	reject(ctx, fasthttp.StatusServiceUnavailable, domain.ErrCodeUnavailable, domain.ErrSessionPending.Message)
}
