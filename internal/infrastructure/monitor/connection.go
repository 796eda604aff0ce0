package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// Probe checks a single dependency. Required probes gate IsOnline.
type Probe struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

// Pinger is satisfied by the bolt snapshot repository.
type Pinger interface {
	Ping() error
}

// Sizer reports the number of buffered writes.
type Sizer interface {
	Size() (int, error)
}

func PostgresProbe(pool *pgxpool.Pool) Probe {
	return Probe{Name: "postgres", Required: true, Check: func(ctx context.Context) error {
		return pool.Ping(ctx)
	}}
}

func RedisProbe(client redislib.UniversalClient) Probe {
	return Probe{Name: "redis", Required: true, Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func BoltProbe(name string, db Pinger) Probe {
	return Probe{Name: name, Required: true, Check: func(context.Context) error {
		return db.Ping()
	}}
}

// Monitor periodically runs probes and caches the result.
type Monitor struct {
	probes []Probe
	buffer Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, buf Sizer, logger *zap.Logger, probes ...Probe) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probes:   probes,
		buffer:   buf,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start runs a first check synchronously, then keeps checking in the background.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline is true when every required probe passed. A monitor that has
// never run reports offline.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status.LastCheck.IsZero() {
		return false
	}
	for _, p := range m.probes {
		if p.Required && !m.status.Components[p.Name] {
			return false
		}
	}
	return true
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Components = make(map[string]bool, len(m.status.Components))
	for k, v := range m.status.Components {
		out.Components[k] = v
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs all probes once.
func (m *Monitor) Refresh(ctx context.Context) {
	status := Status{Components: make(map[string]bool, len(m.probes)+1)}
	for _, p := range m.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			m.logger.Debug("probe failed", zap.String("component", p.Name), zap.Error(err))
		}
		status.Components[p.Name] = err == nil
	}
	if m.buffer != nil {
		size, err := m.buffer.Size()
		if err != nil {
			m.logger.Warn("buffer size check failed", zap.Error(err))
		}
		status.Components["buffer"] = err == nil
		status.BufferSize = size
	}
	status.LastCheck = time.Now()

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	for name, up := range status.Components {
		if was, seen := prev.Components[name]; seen && was != up {
			m.logger.Info("component health changed", zap.String("component", name), zap.Bool("up", up))
		}
	}
}
