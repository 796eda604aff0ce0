package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/internal/config"
	"github.com/fastygo/taskify/internal/infrastructure/buffer"
	"github.com/fastygo/taskify/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskify/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskify/internal/infrastructure/redis"
	"github.com/fastygo/taskify/internal/services"
	"github.com/fastygo/taskify/internal/services/lifecycle"
	"github.com/fastygo/taskify/repository"
	boltRepo "github.com/fastygo/taskify/repository/bolt"
	"github.com/fastygo/taskify/repository/memory"
	"github.com/fastygo/taskify/repository/postgres"
	redisRepo "github.com/fastygo/taskify/repository/redis"
)

// storage is the snapshot repository selected by STORAGE_DRIVER together
// with the health monitor watching it.
type storage struct {
	repo      repository.SnapshotRepository
	monitor   *monitor.Monitor
	processor *services.BufferProcessor
}

// openStorage connects the configured driver and registers every resource
// with manager for shutdown. Remote drivers are wrapped in the outage buffer
// when STORAGE_BUFFERED is set.
func openStorage(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (*storage, error) {
	var (
		repo   repository.SnapshotRepository
		probes []monitor.Probe
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		repo = memory.NewSnapshotRepository()

	case config.DriverBolt:
		boltStore, err := boltRepo.Open(cfg.Storage.BoltPath, "")
		if err != nil {
			return nil, fmt.Errorf("open bolt snapshots: %w", err)
		}
		manager.RegisterCloser("bolt_snapshots", boltStore.Close)
		repo = boltStore
		probes = append(probes, monitor.BoltProbe("bolt", boltStore))

	case config.DriverRedis:
		client, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		manager.RegisterCloser("redis", client.Close)
		repo = redisRepo.NewSnapshotRepository(client, "")
		probes = append(probes, monitor.RedisProbe(client))

	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
		repo = postgres.NewSnapshotRepository(pool)
		probes = append(probes, monitor.PostgresProbe(pool))

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	remote := cfg.Storage.Driver == config.DriverRedis || cfg.Storage.Driver == config.DriverPostgres
	if !remote || !cfg.Storage.Buffered {
		mon := monitor.New(10*time.Second, nil, logger, probes...)
		mon.Start()
		manager.Register("monitor", func(context.Context) error {
			mon.Stop()
			return nil
		})
		return &storage{repo: repo, monitor: mon}, nil
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "snapshot_buffer")
	if err != nil {
		return nil, fmt.Errorf("open buffer store: %w", err)
	}
	manager.RegisterCloser("buffer", bufferStore.Close)

	mon := monitor.New(10*time.Second, bufferStore, logger, probes...)
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	processor := services.NewBufferProcessor(bufferStore, mon, nil, repo, logger, services.ProcessorConfig{
		Interval:   cfg.Buffer.SyncInterval,
		MaxRetries: cfg.Buffer.MaxRetry,
		Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
	})
	processor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		processor.Stop(ctx)
		return nil
	})

	logger.Info("snapshot writes are buffered during outages", zap.String("driver", cfg.Storage.Driver))
	return &storage{
		repo:      services.NewSnapshotBuffer(repo, processor),
		monitor:   mon,
		processor: processor,
	}, nil
}
