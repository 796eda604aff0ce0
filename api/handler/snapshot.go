package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/pkg/httpcontext"
	snapshotUC "github.com/fastygo/taskify/usecase/snapshot"
)

// SnapshotHandler lets clients sync their collections with the backend.
type SnapshotHandler struct {
	baseHandler
	uc *snapshotUC.UseCase
}

func NewSnapshotHandler(uc *snapshotUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Fetch a snapshot
// @Tags snapshots
// @Router /api/v1/snapshots/{key} [get]
func (h *SnapshotHandler) Get(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	payload, err := h.uc.Get(stdCtx, userID, pathParam(ctx, "key"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}

// @Summary Replace a snapshot
// @Tags snapshots
// @Accept json
// @Router /api/v1/snapshots/{key} [put]
func (h *SnapshotHandler) Put(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Put(stdCtx, userID, pathParam(ctx, "key"), ctx.PostBody()); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}
