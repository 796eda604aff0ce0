package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Watcher polls the backend so remote sign-outs and expiries reach the gate,
// and refreshes the token before it lapses.
type Watcher struct {
	client   *Client
	interval time.Duration
	cron     *cron.Cron
	now      func() time.Time
	logger   *zap.Logger
}

func NewWatcher(client *Client, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval < time.Second {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		client:   client,
		interval: interval,
		cron:     cron.New(cron.WithSeconds()),
		now:      time.Now,
		logger:   logger,
	}
	_, _ = w.cron.AddFunc(fmt.Sprintf("@every %ds", int(interval.Seconds())), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		w.Check(ctx)
	})
	return w
}

func (w *Watcher) Start() {
	w.cron.Start()
	w.logger.Info("session watcher started", zap.Duration("interval", w.interval))
}

func (w *Watcher) Stop(ctx context.Context) {
	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// Check validates the current session once and refreshes it when it would
// expire before the next two polls.
func (w *Watcher) Check(ctx context.Context) {
	if w.client.Current() == nil {
		return
	}
	s, err := w.client.GetSession(ctx)
	if err != nil {
		w.logger.Warn("session check failed", zap.Error(err))
		return
	}
	if s == nil || s.ExpiresAt.IsZero() {
		return
	}
	if s.ExpiresAt.Sub(w.now()) > 2*w.interval {
		return
	}
	if _, err := w.client.Refresh(ctx); err != nil {
		w.logger.Warn("session refresh failed", zap.Error(err))
		return
	}
	w.logger.Debug("session refreshed")
}
