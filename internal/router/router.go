package router

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"

	apiHandler "github.com/fastygo/taskify/api/handler"
	"github.com/fastygo/taskify/internal/middleware"
)

// Observability holds the optional debug endpoints shared by both servers.
type Observability struct {
	Metrics     fasthttp.RequestHandler
	EnablePprof bool
}

func (o Observability) mount(r *router.Router) {
	if o.Metrics != nil {
		r.GET("/metrics", o.Metrics)
	}
	if o.EnablePprof {
		r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}
}

// BackendHandlers are served by cmd/server.
type BackendHandlers struct {
	Auth     *apiHandler.AuthHandler
	Profile  *apiHandler.ProfileHandler
	Snapshot *apiHandler.SnapshotHandler
	Health   *apiHandler.HealthHandler
}

func NewBackend(handlers BackendHandlers, authMiddleware middleware.Middleware, obs Observability) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	obs.mount(r)

	r.POST("/api/v1/auth/signup", handlers.Auth.SignUp)
	r.POST("/api/v1/auth/signin", handlers.Auth.SignIn)

	// Protected routes
	r.GET("/api/v1/auth/session", authMiddleware(handlers.Auth.Session))
	r.POST("/api/v1/auth/signout", authMiddleware(handlers.Auth.SignOut))
	r.POST("/api/v1/auth/refresh", authMiddleware(handlers.Auth.Refresh))

	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", authMiddleware(handlers.Profile.UpdateProfile))

	r.GET("/api/v1/snapshots/{key}", authMiddleware(handlers.Snapshot.Get))
	r.PUT("/api/v1/snapshots/{key}", authMiddleware(handlers.Snapshot.Put))

	return r
}

// ClientHandlers are served by `taskify serve`.
type ClientHandlers struct {
	Session   *apiHandler.SessionHandler
	Task      *apiHandler.TaskHandler
	Sprint    *apiHandler.SprintHandler
	Dashboard *apiHandler.DashboardHandler
	Health    *apiHandler.HealthHandler
}

// NewClient wires the local API behind the session gate guards.
func NewClient(handlers ClientHandlers, gate middleware.RouteGate, retryAfter time.Duration, obs Observability) *router.Router {
	r := router.New()
	protected := middleware.RequireSession(gate, retryAfter)
	publicOnly := middleware.PublicOnly(gate, retryAfter)

	if handlers.Health != nil {
		r.GET("/health", handlers.Health.Check)
	}
	obs.mount(r)

	r.GET("/api/v1/session", handlers.Session.Current)
	r.POST("/api/v1/session/signin", publicOnly(handlers.Session.SignIn))
	r.POST("/api/v1/session/signup", publicOnly(handlers.Session.SignUp))
	r.POST("/api/v1/session/signout", handlers.Session.SignOut)

	r.GET("/api/v1/dashboard", protected(handlers.Dashboard.Get))

	r.GET("/api/v1/tasks", protected(handlers.Task.GetTasks))
	r.GET("/api/v1/tasks/upcoming", protected(handlers.Task.GetUpcoming))
	r.GET("/api/v1/tasks/{id}", protected(handlers.Task.GetTask))
	r.POST("/api/v1/tasks", protected(handlers.Task.CreateTask))
	r.PUT("/api/v1/tasks/{id}", protected(handlers.Task.UpdateTask))
	r.PATCH("/api/v1/tasks/{id}", protected(handlers.Task.PatchTask))
	r.DELETE("/api/v1/tasks/{id}", protected(handlers.Task.DeleteTask))

	r.GET("/api/v1/sprints", protected(handlers.Sprint.GetSprints))
	r.GET("/api/v1/sprints/completed", protected(handlers.Sprint.GetCompleted))
	r.GET("/api/v1/sprints/{id}", protected(handlers.Sprint.GetSprint))
	r.GET("/api/v1/sprints/{id}/progress", protected(handlers.Sprint.GetProgress))
	r.POST("/api/v1/sprints", protected(handlers.Sprint.CreateSprint))
	r.PUT("/api/v1/sprints/{id}", protected(handlers.Sprint.UpdateSprint))
	r.DELETE("/api/v1/sprints/{id}", protected(handlers.Sprint.DeleteSprint))

	r.GET("/api/v1/retrospectives", protected(handlers.Sprint.GetRetrospectives))
	r.POST("/api/v1/retrospectives", protected(handlers.Sprint.CreateRetrospective))

	return r
}
