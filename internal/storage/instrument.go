package storage

import (
	"time"

	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
)

// instrumented wraps a Store with operation counters and latency histograms.
type instrumented struct {
	Store
	backend Backend
	metrics *metric.Registry
}

// Instrument wraps store so every operation is recorded in metrics.
// A nil registry returns store unchanged.
func Instrument(store Store, backend Backend, metrics *metric.Registry) Store {
	if metrics == nil {
		return store
	}
	return &instrumented{Store: store, backend: backend, metrics: metrics}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	b := string(s.backend)
	s.metrics.StorageOperations.WithLabelValues(b, op, metric.Result(err)).Inc()
	s.metrics.StorageDuration.WithLabelValues(b, op).Observe(time.Since(start).Seconds())
}

func (s *instrumented) Insert(key string, value []byte) error {
	start := time.Now()
	err := s.Store.Insert(key, value)
	s.observe("insert", start, err)
	return err
}

func (s *instrumented) Get(key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := s.Store.Get(key)
	s.observe("get", start, err)
	return v, ok, err
}

func (s *instrumented) Exists(key string) (bool, error) {
	start := time.Now()
	ok, err := s.Store.Exists(key)
	s.observe("exists", start, err)
	return ok, err
}

func (s *instrumented) Remove(key string) error {
	start := time.Now()
	err := s.Store.Remove(key)
	s.observe("remove", start, err)
	return err
}

func (s *instrumented) List() ([]Entry, error) {
	start := time.Now()
	entries, err := s.Store.List()
	s.observe("list", start, err)
	return entries, err
}

func (s *instrumented) Keys() ([]string, error) {
	start := time.Now()
	keys, err := s.Store.Keys()
	s.observe("keys", start, err)
	return keys, err
}

// Unwrap returns the wrapped store.
func (s *instrumented) Unwrap() Store {
	return s.Store
}
