package store

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Metrics receives store activity counters. internal/metrics implements it.
type Metrics interface {
	Mutation(collection, op string)
	PersistFailed(collection string)
	CollectionSize(collection string, n int)
}

type nopMetrics struct{}

func (nopMetrics) Mutation(string, string)    {}
func (nopMetrics) PersistFailed(string)       {}
func (nopMetrics) CollectionSize(string, int) {}

type options struct {
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
	metrics Metrics
}

// Option customizes a store.
type Option func(*options)

// WithClock overrides time.Now, used by date-window queries and createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides the default random UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// uniqueID draws ids from gen until one is unused, falling back to a random
// UUID if the generator keeps colliding.
func uniqueID(gen func() string, taken func(string) bool) string {
	for attempt := 0; attempt < 8; attempt++ {
		if id := gen(); id != "" && !taken(id) {
			return id
		}
	}
	for {
		if id := uuid.NewString(); !taken(id) {
			return id
		}
	}
}
