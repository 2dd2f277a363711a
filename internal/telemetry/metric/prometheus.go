package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catpanel"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
	ResultMiss  = "miss"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Storage metrics
	StorageOperations *prometheus.CounterVec   // backend, op, result
	StorageDuration   *prometheus.HistogramVec // backend, op

	// Module cache metrics
	CacheRequests *prometheus.CounterVec // result

	// Loader metrics
	ModuleLoads   *prometheus.CounterVec // scheme, result
	FetchDuration prometheus.Histogram
	Transforms    *prometheus.CounterVec // kind, result
}

// NewRegistry creates a registry with every application metric registered,
// plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StorageOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage backend operations by backend, operation and result",
		}, []string{"backend", "op", "result"}),

		StorageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Storage backend operation latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"backend", "op"}),

		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module_cache",
			Name:      "requests_total",
			Help:      "Module cache lookups by result (hit or miss)",
		}, []string{"result"}),

		ModuleLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "loads_total",
			Help:      "Module loads by specifier scheme and result",
		}, []string{"scheme", "result"}),

		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of remote module fetches on cache miss",
			Buckets:   prometheus.DefBuckets,
		}),

		Transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "transforms_total",
			Help:      "Source transformations by source kind and result",
		}, []string{"kind", "result"}),
	}

	r.registry.MustRegister(
		r.StorageOperations,
		r.StorageDuration,
		r.CacheRequests,
		r.ModuleLoads,
		r.FetchDuration,
		r.Transforms,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// MustRegister registers extra collectors, such as a cache size collector.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Registerer exposes the underlying registerer for components that own
// their collectors (badger size gauges).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying gatherer, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Result maps an error to the ok/error result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
