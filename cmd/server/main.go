package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskify/api/handler"
	"github.com/fastygo/taskify/internal/config"
	"github.com/fastygo/taskify/internal/infrastructure/buffer"
	"github.com/fastygo/taskify/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskify/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskify/internal/infrastructure/redis"
	"github.com/fastygo/taskify/internal/metrics"
	"github.com/fastygo/taskify/internal/middleware"
	"github.com/fastygo/taskify/internal/router"
	"github.com/fastygo/taskify/internal/services"
	"github.com/fastygo/taskify/internal/services/lifecycle"
	"github.com/fastygo/taskify/pkg/httpcontext"
	"github.com/fastygo/taskify/pkg/logger"
	"github.com/fastygo/taskify/repository/postgres"
	redisRepo "github.com/fastygo/taskify/repository/redis"
	authUC "github.com/fastygo/taskify/usecase/auth"
	profileUC "github.com/fastygo/taskify/usecase/profile"
	snapshotUC "github.com/fastygo/taskify/usecase/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.SignalContext(context.Background())
	defer cancel()

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.RegisterCloser("redis", redisClient.Close)

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.RegisterCloser("buffer", bufferStore.Close)

	mon := monitor.New(10*time.Second, bufferStore, zapLogger,
		monitor.PostgresProbe(pool),
		monitor.RedisProbe(redisClient),
	)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, "", cfg.JWT.SessionTTL)

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		profileRepo,
		snapshotRepo,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	bufferBridge := services.NewBufferBridge(bufferProcessor)

	authUseCase := authUC.New(userRepo, profileRepo, sessionRepo, authUC.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		SessionTTL: cfg.JWT.SessionTTL,
	}, zapLogger)
	profileUseCase := profileUC.New(profileRepo, bufferBridge, zapLogger)
	snapshotUseCase := snapshotUC.New(services.NewSnapshotBuffer(snapshotRepo, bufferProcessor), bufferBridge, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.BackendHandlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile:  apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Snapshot: apiHandler.NewSnapshotHandler(snapshotUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	obs := router.Observability{EnablePprof: cfg.HTTP.EnablePprof}
	mws := []middleware.Middleware{middleware.AccessLog(zapLogger)}
	if cfg.HTTP.EnableMetrics {
		reg := metrics.New()
		reg.WatchBuffer(bufferProcessor.Size)
		obs.Metrics = reg.Handler()
		mws = append(mws, reg.Middleware)
	}

	authMiddleware := middleware.JWTAuth(authUseCase, cfg.Context.RequestTimeout, zapLogger)
	r := router.NewBackend(handlers, authMiddleware, obs)

	server := &fasthttp.Server{
		Handler:            middleware.Chain(r.Handler, mws...),
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 8 << 20,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server stopped", zap.Error(err))
			cancel()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
