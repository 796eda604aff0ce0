package middleware

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskify/api/transport"
	"github.com/fastygo/taskify/domain"
)

// Middleware wraps a fasthttp handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Chain applies mws so the first one is outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func reject(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, msg string) {
	body, _ := json.Marshal(transport.NewError(string(code), msg, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
