package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskify/api/handler"
	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/config"
	"github.com/fastygo/taskify/internal/identity"
	"github.com/fastygo/taskify/internal/metrics"
	"github.com/fastygo/taskify/internal/middleware"
	"github.com/fastygo/taskify/internal/persist"
	"github.com/fastygo/taskify/internal/router"
	"github.com/fastygo/taskify/internal/services/lifecycle"
	"github.com/fastygo/taskify/internal/session"
	"github.com/fastygo/taskify/internal/store"
	"github.com/fastygo/taskify/pkg/httpcontext"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local task/sprint API behind the session gate",
		Long: `Start the client runtime: restore the task and sprint stores from the
configured snapshot storage, resolve the session against the identity
backend and serve the local HTTP API.

Examples:
  taskify serve --addr 127.0.0.1:7070
  taskify serve --driver memory --no-seed`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (defaults to SERVER_HOST:SERVER_PORT)")
	cmd.Flags().Bool("no-seed", false, "start empty when no snapshot exists")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, zapLogger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()
	if noSeed, _ := cmd.Flags().GetBool("no-seed"); noSeed {
		cfg.Storage.SeedDemo = false
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Address()
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.SignalContext(cmd.Context())
	defer cancel()
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			zapLogger.Error("graceful shutdown error", zap.Error(err))
		}
	}()

	st, err := openStorage(appCtx, cfg, manager, zapLogger)
	if err != nil {
		return err
	}

	var reg *metrics.Registry
	storeOpts := []store.Option{store.WithLogger(zapLogger)}
	if cfg.HTTP.EnableMetrics {
		reg = metrics.New()
		storeOpts = append(storeOpts, store.WithMetrics(reg))
		if st.processor != nil {
			reg.WatchBuffer(st.processor.Size)
		}
	}

	notifier := persist.NewNotifier()
	failures, unsubscribe := notifier.Subscribe(16)
	manager.Register("persist_notifier", func(context.Context) error {
		unsubscribe()
		return nil
	})
	go logFailures(failures, zapLogger)

	adapter := persist.NewAdapter(st.repo, cfg.Storage.Namespace, notifier, zapLogger)
	tasks, sprints, err := restoreStores(appCtx, adapter, cfg.Storage.SeedDemo, storeOpts, zapLogger)
	if err != nil {
		return err
	}

	watchStores(tasks, sprints, manager, zapLogger)
	gate := startSession(appCtx, cfg, manager, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.ClientHandlers{
		Session:   apiHandler.NewSessionHandler(gate, ctxAdapter, zapLogger),
		Task:      apiHandler.NewTaskHandler(tasks, ctxAdapter, zapLogger),
		Sprint:    apiHandler.NewSprintHandler(sprints, ctxAdapter, zapLogger),
		Dashboard: apiHandler.NewDashboardHandler(tasks, sprints, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(st.monitor, ctxAdapter, zapLogger),
	}

	obs := router.Observability{EnablePprof: cfg.HTTP.EnablePprof}
	mws := []middleware.Middleware{middleware.AccessLog(zapLogger)}
	if reg != nil {
		obs.Metrics = reg.Handler()
		mws = append(mws, reg.Middleware)
	}
	r := router.NewClient(handlers, gate, time.Second, obs)

	server := &fasthttp.Server{
		Handler:      middleware.Chain(r.Handler, mws...),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("local api started",
			zap.String("address", addr),
			zap.String("driver", cfg.Storage.Driver),
			zap.String("identity", cfg.Identity.BaseURL))
		serveErr <- server.ListenAndServe(addr)
	}()

	select {
	case <-appCtx.Done():
		return nil
	case err := <-serveErr:
		return fmt.Errorf("listen %s: %w", addr, err)
	}
}

// restoreStores loads both stores, seeding demo data into empty storage when
// enabled. A seed that cannot be written back is only logged.
func restoreStores(ctx context.Context, adapter *persist.Adapter, seed bool, opts []store.Option, logger *zap.Logger) (*store.TaskStore, *store.SprintStore, error) {
	tasks := store.NewTaskStore(adapter, opts...)
	sprints := store.NewSprintStore(adapter, tasks, opts...)

	var (
		seedTasks   []domain.Task
		seedSprints []domain.Sprint
		seedRetros  []domain.Retrospective
	)
	if seed {
		now := time.Now()
		seedTasks = store.DemoTasks(now)
		seedSprints = store.DemoSprints(now)
		seedRetros = store.DemoRetrospectives(now)
	}

	if err := seedError(tasks.Restore(ctx, seedTasks), logger); err != nil {
		return nil, nil, fmt.Errorf("restore tasks: %w", err)
	}
	if err := seedError(sprints.Restore(ctx, seedSprints, seedRetros), logger); err != nil {
		return nil, nil, fmt.Errorf("restore sprints: %w", err)
	}

	logger.Info("stores restored",
		zap.Int("tasks", len(tasks.Tasks())),
		zap.Int("sprints", len(sprints.Sprints())),
		zap.Int("retrospectives", len(sprints.Retrospectives())))
	return tasks, sprints, nil
}

// seedError drops a failed write-back of seed data; the stores already hold it.
func seedError(err error, logger *zap.Logger) error {
	if errors.Is(err, persist.ErrPersistFailed) {
		logger.Warn("seed data not saved", zap.Error(err))
		return nil
	}
	return err
}

// startSession wires the identity client, its poller and the gate, then
// resolves the stored session before the API starts answering.
func startSession(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) *session.Gate {
	client := identity.New(identity.Config{
		BaseURL: cfg.Identity.BaseURL,
		Timeout: cfg.Identity.RequestTimeout,
		Tokens:  identity.NewTokenFile(cfg.Identity.TokenPath),
	}, logger.Named("identity"))

	gate := session.NewGate(client, cfg.Identity.RequestTimeout, logger.Named("session"))
	manager.Register("session_gate", func(context.Context) error {
		gate.Stop()
		return nil
	})
	stopWatch := gate.Watch(func(view domain.SessionView) {
		logger.Info("session changed", zap.String("state", view.State.String()))
	})
	manager.Register("session_log", func(context.Context) error {
		stopWatch()
		return nil
	})
	gate.Start(ctx)

	watcher := identity.NewWatcher(client, cfg.Identity.PollInterval, logger.Named("identity"))
	watcher.Start()
	manager.Register("session_watcher", func(ctx context.Context) error {
		watcher.Stop(ctx)
		return nil
	})

	logger.Info("session resolved", zap.String("state", gate.Current().State.String()))
	return gate
}

// watchStores follows both stores the way a view would, logging every change.
func watchStores(tasks *store.TaskStore, sprints *store.SprintStore, manager *lifecycle.Manager, logger *zap.Logger) {
	stopTasks := tasks.Subscribe(func(all []domain.Task) {
		logger.Debug("tasks changed", zap.Int("tasks", len(all)))
	})
	stopSprints := sprints.Subscribe(func(c store.SprintChange) {
		logger.Debug("sprints changed",
			zap.Int("sprints", len(c.Sprints)),
			zap.Int("retrospectives", len(c.Retrospectives)))
	})
	manager.Register("store_subscriptions", func(context.Context) error {
		stopTasks()
		stopSprints()
		return nil
	})
}

func logFailures(failures <-chan persist.Failure, logger *zap.Logger) {
	for f := range failures {
		logger.Warn("snapshot not persisted, change kept in memory",
			zap.String("key", f.Key),
			zap.Time("at", f.At),
			zap.Error(f.Err))
	}
}
