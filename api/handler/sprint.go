package handler

import (
	"math"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/api/transport"
	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/store"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

type SprintHandler struct {
	baseHandler
	sprints *store.SprintStore
}

func NewSprintHandler(sprints *store.SprintStore, adapter *httpcontext.Adapter, logger *zap.Logger) *SprintHandler {
	return &SprintHandler{
		baseHandler: newBaseHandler(adapter, logger),
		sprints:     sprints,
	}
}

type sprintView struct {
	domain.Sprint
	DurationDays int     `json:"durationDays"`
	Progress     float64 `json:"progress"`
}

func (h *SprintHandler) view(sp domain.Sprint) sprintView {
	return sprintView{Sprint: sp, DurationDays: sp.DurationDays(), Progress: h.sprints.Progress(sp.ID)}
}

func (h *SprintHandler) views(in []domain.Sprint) []sprintView {
	out := make([]sprintView, 0, len(in))
	for _, sp := range in {
		out = append(out, h.view(sp))
	}
	return out
}

// @Summary List sprints
// @Tags sprints
// @Router /api/v1/sprints [get]
func (h *SprintHandler) GetSprints(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.views(h.sprints.Sprints()))
}

// @Summary Sprints whose end date has passed
// @Tags sprints
// @Router /api/v1/sprints/completed [get]
func (h *SprintHandler) GetCompleted(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.views(h.sprints.CompletedSprints()))
}

// @Summary Get a sprint
// @Tags sprints
// @Router /api/v1/sprints/{id} [get]
func (h *SprintHandler) GetSprint(ctx *fasthttp.RequestCtx) {
	sp, ok := h.sprints.Sprint(pathParam(ctx, "id"))
	if !ok {
		h.respondError(ctx, domain.ErrSprintNotFound)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.view(sp))
}

// @Summary Sprint progress
// @Tags sprints
// @Router /api/v1/sprints/{id}/progress [get]
func (h *SprintHandler) GetProgress(ctx *fasthttp.RequestCtx) {
	id := pathParam(ctx, "id")
	if _, ok := h.sprints.Sprint(id); !ok {
		h.respondError(ctx, domain.ErrSprintNotFound)
		return
	}
	p := h.sprints.Progress(id)
	h.respondSuccess(ctx, http.StatusOK, transport.ProgressResponse{
		SprintID: id,
		Progress: p,
		Percent:  int(math.Round(p * 100)),
	})
}

// @Summary Create sprint
// @Tags sprints
// @Router /api/v1/sprints [post]
func (h *SprintHandler) CreateSprint(ctx *fasthttp.RequestCtx) {
	var req transport.SprintRequest
	if !h.decode(ctx, &req) {
		return
	}
	sp, err := req.Sprint("")
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.sprints.AddSprint(stdCtx, sp)
	if created.ID == "" {
		h.respondError(ctx, err)
		return
	}
	h.respondMutation(ctx, http.StatusCreated, h.view(created), err)
}

// @Summary Replace sprint
// @Tags sprints
// @Router /api/v1/sprints/{id} [put]
func (h *SprintHandler) UpdateSprint(ctx *fasthttp.RequestCtx) {
	var req transport.SprintRequest
	if !h.decode(ctx, &req) {
		return
	}
	sp, err := req.Sprint(pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	found, err := h.sprints.UpdateSprint(stdCtx, sp)
	if !found {
		if err == nil {
			err = domain.ErrSprintNotFound
		}
		h.respondError(ctx, err)
		return
	}
	updated, _ := h.sprints.Sprint(sp.ID)
	h.respondMutation(ctx, http.StatusOK, h.view(updated), err)
}

// @Summary Delete sprint
// @Tags sprints
// @Router /api/v1/sprints/{id} [delete]
func (h *SprintHandler) DeleteSprint(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if _, err := h.sprints.DeleteSprint(stdCtx, pathParam(ctx, "id")); err != nil {
		h.respondMutation(ctx, http.StatusOK, nil, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary List retrospectives
// @Tags retrospectives
// @Param sprint query string false "sprint id"
// @Router /api/v1/retrospectives [get]
func (h *SprintHandler) GetRetrospectives(ctx *fasthttp.RequestCtx) {
	if sprintID := string(ctx.QueryArgs().Peek("sprint")); sprintID != "" {
		h.respondSuccess(ctx, http.StatusOK, h.sprints.RetrospectivesBySprint(sprintID))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.sprints.Retrospectives())
}

// @Summary Create retrospective
// @Tags retrospectives
// @Router /api/v1/retrospectives [post]
func (h *SprintHandler) CreateRetrospective(ctx *fasthttp.RequestCtx) {
	var req transport.RetrospectiveRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	retro, err := h.sprints.AddRetrospective(stdCtx, req.Input())
	if retro.ID == "" {
		h.respondError(ctx, err)
		return
	}
	h.respondMutation(ctx, http.StatusCreated, retro, err)
}
