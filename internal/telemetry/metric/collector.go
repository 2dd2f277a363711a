package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// KeyCounter reports how many entries a store holds.
type KeyCounter interface {
	Len() (int, error)
}

// Collector reports the module cache entry count at scrape time.
type Collector struct {
	source  KeyCounter
	entries *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source KeyCounter) *Collector {
	return &Collector{
		source: source,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "module_cache", "entries"),
			"Number of cached remote module sources",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	n, err := c.source.Len()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.entries, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(n))
}
