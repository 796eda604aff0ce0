// Package metrics exposes Prometheus collectors for the stores, the snapshot
// buffer and the HTTP layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fastygo/taskify/internal/store"
)

const namespace = "taskify"

// Registry owns every collector exported by the process.
type Registry struct {
	reg *prometheus.Registry

	mutations   *prometheus.CounterVec
	persistFail *prometheus.CounterVec
	collection  *prometheus.GaugeVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Applied store mutations by collection and operation.",
		}, []string{"collection", "op"}),
		persistFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_persist_failures_total",
			Help:      "Snapshot writes that did not reach storage.",
		}, []string{"collection"}),
		collection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_collection_size",
			Help:      "Number of items held by each collection.",
		}, []string{"collection"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.mutations, r.persistFail, r.collection, r.requests, r.latency,
	)
	return r
}

func (r *Registry) Mutation(collection, op string) {
	r.mutations.WithLabelValues(collection, op).Inc()
}

func (r *Registry) PersistFailed(collection string) {
	r.persistFail.WithLabelValues(collection).Inc()
}

func (r *Registry) CollectionSize(collection string, n int) {
	r.collection.WithLabelValues(collection).Set(float64(n))
}

// WatchBuffer exports the pending write count reported by size.
func (r *Registry) WatchBuffer(size func() (int, error)) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffer_pending_items",
		Help:      "Writes waiting in the local buffer for storage to recover.",
	}, func() float64 {
		n, err := size()
		if err != nil {
			return -1
		}
		return float64(n)
	}))
}

// Middleware records request counts and latency.
func (r *Registry) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		method := string(ctx.Method())
		r.requests.WithLabelValues(method, strconv.Itoa(ctx.Response.StatusCode())).Inc()
		r.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
}

var _ store.Metrics = (*Registry)(nil)
