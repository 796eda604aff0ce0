package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/api/transport"
	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/store"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

type DashboardHandler struct {
	baseHandler
	tasks   *store.TaskStore
	sprints *store.SprintStore
}

func NewDashboardHandler(tasks *store.TaskStore, sprints *store.SprintStore, adapter *httpcontext.Adapter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		tasks:       tasks,
		sprints:     sprints,
	}
}

// @Summary Task counts per status
// @Tags dashboard
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) Get(ctx *fasthttp.RequestCtx) {
	counts := h.tasks.CountByStatus()
	resp := transport.DashboardResponse{
		Counts:   make(map[string]int, len(counts)),
		Upcoming: len(h.tasks.UpcomingTasks(defaultUpcomingDays)),
		Sprints:  len(h.sprints.Sprints()),
	}
	for _, st := range domain.Statuses() {
		resp.Counts[string(st)] = counts[st]
		resp.Total += counts[st]
	}
	h.respondSuccess(ctx, http.StatusOK, resp)
}
