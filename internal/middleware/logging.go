package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

// AccessLog logs one line per request and turns handler panics into 500s.
func AccessLog(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			reqID := httpcontext.RequestID(ctx)
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic",
						zap.String("request_id", reqID),
						zap.Any("panic", rec),
						zap.Stack("stack"))
					ctx.ResetBody()
					reject(ctx, fasthttp.StatusInternalServerError, domain.ErrCodeInternal, "internal error")
				}
				logger.Info("request",
					zap.String("request_id", reqID),
					zap.ByteString("method", ctx.Method()),
					zap.ByteString("path", ctx.Path()),
					zap.Int("status", ctx.Response.StatusCode()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next(ctx)
		}
	}
}
