// Package metric provides Prometheus metrics for CatPanel.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: metric registry and HTTP handler
//   - collector.go: collector reporting the module cache size on scrape
//
// Metrics include storage operation counters and latencies, module cache
// hit/miss counters, module load outcomes by scheme and remote fetch
// latency.
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
