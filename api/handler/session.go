package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/api/transport"
	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/session"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

// SessionHandler exposes the client session gate.
type SessionHandler struct {
	baseHandler
	gate *session.Gate
}

func NewSessionHandler(gate *session.Gate, adapter *httpcontext.Adapter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		gate:        gate,
	}
}

// @Summary Session state
// @Tags session
// @Router /api/v1/session [get]
func (h *SessionHandler) Current(ctx *fasthttp.RequestCtx) {
	view := h.gate.Current()
	resp := transport.SessionResponse{State: view.State.String()}
	if view.Authenticated() {
		resp.User = view.User
	}
	h.respondSuccess(ctx, http.StatusOK, resp)
}

// @Summary Sign in
// @Tags session
// @Router /api/v1/session/signin [post]
func (h *SessionHandler) SignIn(ctx *fasthttp.RequestCtx) {
	var req transport.CredentialsRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.gate.SignIn(stdCtx, req.Email, req.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.SessionResponse{
		State: domain.SessionAuthenticated.String(),
		User:  user,
	})
}

// @Summary Sign up
// @Tags session
// @Router /api/v1/session/signup [post]
func (h *SessionHandler) SignUp(ctx *fasthttp.RequestCtx) {
	var req transport.CredentialsRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.gate.SignUp(stdCtx, req.Credentials())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, user)
}

// @Summary Sign out
// @Tags session
// @Router /api/v1/session/signout [post]
func (h *SessionHandler) SignOut(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.gate.SignOut(stdCtx)
	ctx.SetStatusCode(http.StatusNoContent)
}
