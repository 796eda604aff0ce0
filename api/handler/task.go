package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/api/transport"
	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/store"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

const defaultUpcomingDays = 7

type TaskHandler struct {
	baseHandler
	tasks *store.TaskStore
}

func NewTaskHandler(tasks *store.TaskStore, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		tasks:       tasks,
	}
}

// @Summary List tasks
// @Tags tasks
// @Param status query string false "todo|inprogress|completed"
// @Param sprint query string false "sprint id"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	status := domain.TaskStatus(args.Peek("status"))
	sprintID := string(args.Peek("sprint"))

	if status != "" && !status.Valid() {
		h.respondError(ctx, domain.Invalid("status", "unknown status "+string(status)))
		return
	}

	var tasks []domain.Task
	switch {
	case sprintID != "":
		tasks = h.tasks.TasksBySprint(sprintID)
		if status != "" {
			tasks = filterStatus(tasks, status)
		}
	case status != "":
		tasks = h.tasks.TasksByStatus(status)
	default:
		tasks = h.tasks.Tasks()
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Get a task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	task, ok := h.tasks.Task(pathParam(ctx, "id"))
	if !ok {
		h.respondError(ctx, domain.ErrTaskNotFound)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Tasks due soon
// @Tags tasks
// @Param days query int false "window in days, default 7"
// @Router /api/v1/tasks/upcoming [get]
func (h *TaskHandler) GetUpcoming(ctx *fasthttp.RequestCtx) {
	days := defaultUpcomingDays
	if raw := ctx.QueryArgs().Peek("days"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 0 {
			h.respondError(ctx, domain.Invalid("days", "must be a non-negative integer"))
			return
		}
		days = n
	}
	h.respondSuccess(ctx, http.StatusOK, h.tasks.UpcomingTasks(days))
}

// @Summary Create task
// @Tags tasks
// @Accept json
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	in, err := req.Input()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.tasks.AddTask(stdCtx, in)
	if created.ID == "" {
		h.respondError(ctx, err)
		return
	}
	h.respondMutation(ctx, http.StatusCreated, created, err)
}

// @Summary Replace task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	id := pathParam(ctx, "id")
	if _, ok := h.tasks.Task(id); !ok {
		h.respondError(ctx, domain.ErrTaskNotFound)
		return
	}
	task, err := req.Task(id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.replace(ctx, task)
}

// @Summary Patch task
// @Tags tasks
// @Router /api/v1/tasks/{id} [patch]
func (h *TaskHandler) PatchTask(ctx *fasthttp.RequestCtx) {
	var patch transport.TaskPatch
	if !h.decode(ctx, &patch) {
		return
	}
	existing, ok := h.tasks.Task(pathParam(ctx, "id"))
	if !ok {
		h.respondError(ctx, domain.ErrTaskNotFound)
		return
	}
	task, err := patch.Apply(existing)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.replace(ctx, task)
}

func (h *TaskHandler) replace(ctx *fasthttp.RequestCtx, task domain.Task) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	found, err := h.tasks.UpdateTask(stdCtx, task)
	if !found {
		if err == nil {
			err = domain.ErrTaskNotFound
		}
		h.respondError(ctx, err)
		return
	}
	h.respondMutation(ctx, http.StatusOK, task, err)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if _, err := h.tasks.DeleteTask(stdCtx, pathParam(ctx, "id")); err != nil {
		h.respondMutation(ctx, http.StatusOK, nil, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

func filterStatus(tasks []domain.Task, status domain.TaskStatus) []domain.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
