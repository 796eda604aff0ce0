package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/infrastructure/buffer"
	"github.com/fastygo/taskify/repository"
)

// ConnectionHealth abstracts the connection monitor.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how often and how hard the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered writes against primary storage. Direct
// writes and replays are serialized so a replay never overwrites a newer write.
type BufferProcessor struct {
	store     *buffer.Store
	monitor   ConnectionHealth
	profiles  repository.ProfileRepository
	snapshots repository.SnapshotRepository
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       ProcessorConfig

	mu sync.Mutex
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	profiles repository.ProfileRepository,
	snapshots repository.SnapshotRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:     store,
		monitor:   monitor,
		profiles:  profiles,
		snapshots: snapshots,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	_, _ = bp.cron.AddFunc(fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds())), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@hourly", bp.cleanup)

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch of buffered items. It is skipped while offline.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := bp.logger.With(
			zap.String("item_id", item.ID),
			zap.String("entity", item.Entity),
			zap.String("key", item.Key),
		)
		if err := bp.processItem(ctx, item); err != nil {
			if item.Retries+1 >= bp.cfg.MaxRetries {
				log.Warn("dropping buffer item (max retries reached)", zap.Error(err))
				if err := bp.store.Remove(item); err != nil {
					log.Warn("failed to purge dropped buffer item", zap.Error(err))
				}
				continue
			}
			log.Error("failed to replay buffer item", zap.Error(err))
			if err := bp.store.Requeue(item); err != nil {
				log.Error("failed to requeue buffer item", zap.Error(err))
			}
			continue
		}
		if err := bp.store.Remove(item); err != nil {
			log.Warn("failed to purge replayed buffer item", zap.Error(err))
		}
	}
	return nil
}

// BufferOperation writes item directly when storage is reachable and parks
// it in the buffer otherwise. A successful direct write discards any older
// pending write for the same key.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.monitor == nil || bp.monitor.IsOnline() {
		err := bp.processItem(ctx, item)
		if err == nil {
			return bp.store.Drop(item.Entity, item.Key)
		}
		bp.logger.Warn("direct write failed, buffering",
			zap.String("entity", item.Entity),
			zap.String("key", item.Key),
			zap.Error(err))
	}
	return bp.store.Enqueue(item)
}

// Pending returns the buffered payload for entity/key.
func (bp *BufferProcessor) Pending(entity, key string) (json.RawMessage, bool, error) {
	item, ok, err := bp.store.Pending(entity, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return item.Data, true, nil
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() (int, error) {
	if bp == nil || bp.store == nil {
		return 0, nil
	}
	return bp.store.Size()
}

func (bp *BufferProcessor) cleanup() {
	removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
	if err != nil {
		bp.logger.Error("buffer cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		bp.logger.Warn("expired buffer items discarded", zap.Int("count", removed))
	}
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	switch item.Entity {
	case buffer.EntityProfile:
		if bp.profiles == nil {
			return fmt.Errorf("profile repository not configured")
		}
		var profile domain.Profile
		if err := json.Unmarshal(item.Data, &profile); err != nil {
			return err
		}
		return bp.profiles.Upsert(ctx, &profile)

	case buffer.EntitySnapshot:
		if bp.snapshots == nil {
			return fmt.Errorf("snapshot repository not configured")
		}
		if item.Operation != buffer.OperationPut {
			return fmt.Errorf("unsupported operation %s", item.Operation)
		}
		return bp.snapshots.Put(ctx, item.Key, item.Data)

	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}
