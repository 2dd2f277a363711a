package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerStore implements Store on Badger v3.
//
// Values live in append-only value-log segments. An overwrite writes a new
// version and leaves the previous one as garbage for the value log GC,
// which runs on a background loop.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	path   string
	logger *slog.Logger

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge

	// Shutdown
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// OpenBadger opens or creates the "<root>.badger" directory.
func OpenBadger(root string, cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := ArtifactPath(root, BackendBadger)
	if err := ensureParent(path); err != nil {
		return nil, wrapErr(BackendBadger, "open", path, err)
	}

	defaults := DefaultBadgerConfig()
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaults.GCInterval
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = defaults.GCThreshold
	}
	if cfg.ValueLogFileSize <= 0 {
		cfg.ValueLogFileSize = defaults.ValueLogFileSize
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{logger: logger.With("component", "badger")}
	opts.BlockCacheSize = cfg.CacheSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.SyncWrites = cfg.SyncWrites
	opts.DetectConflicts = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, wrapErr(BackendBadger, "open", path, err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	logger.Debug("badger store opened",
		"path", path,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// Insert drops any existing entry and writes the new one in a single
// Update transaction.
func (s *BadgerStore) Insert(key string, value []byte) error {
	if err := checkKey(BackendBadger, "insert", s.path, key); err != nil {
		return err
	}
	k := []byte(key)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(k); err != nil {
			return err
		}
		return txn.Set(k, value)
	})
	return wrapErr(BackendBadger, "insert", s.path, err)
}

// Get retrieves a value by key.
func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, wrapErr(BackendBadger, "get", s.path, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// Exists looks the key up in the LSM tree without reading the value log.
func (s *BadgerStore) Exists(key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, wrapErr(BackendBadger, "exists", s.path, err)
	}
	return true, nil
}

// Remove deletes key.
func (s *BadgerStore) Remove(key string) error {
	if key == "" {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return wrapErr(BackendBadger, "remove", s.path, err)
}

// List iterates all live entries inside one read transaction.
func (s *BadgerStore) List() ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if value == nil {
				value = []byte{}
			}
			entries = append(entries, Entry{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(BackendBadger, "list", s.path, err)
	}
	return entries, nil
}

// Keys iterates keys only; values are never fetched from the value log.
func (s *BadgerStore) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(BackendBadger, "keys", s.path, err)
	}
	return keys, nil
}

// Path returns the badger directory.
func (s *BadgerStore) Path() string {
	return s.path
}

// GC runs value log GC until badger reports nothing left to rewrite.
// It returns the number of rewritten segments.
func (s *BadgerStore) GC() (int, error) {
	startTime := time.Now()

	rewrites := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rewrites, wrapErr(BackendBadger, "gc", s.path, err)
		}
		rewrites++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(1)

	s.logger.Debug("badger gc completed",
		"rewrites", rewrites,
		"elapsed", time.Since(startTime))

	return rewrites, nil
}

// Size returns the LSM and value log sizes in bytes.
func (s *BadgerStore) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		err = wrapErr(BackendBadger, "close", s.path, s.db.Close())
	})
	return err
}

// RegisterMetrics registers Badger size gauges with Prometheus.
//
// This should be called once per store. Returns the store for chaining.
func (s *BadgerStore) RegisterMetrics(registry prometheus.Registerer) *BadgerStore {
	labels := prometheus.Labels{"path": s.path}

	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "catpanel",
		Subsystem:   "badger",
		Name:        "lsm_size_bytes",
		Help:        "Badger LSM tree size in bytes",
		ConstLabels: labels,
	})

	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "catpanel",
		Subsystem:   "badger",
		Name:        "value_log_size_bytes",
		Help:        "Badger value log size in bytes",
		ConstLabels: labels,
	})

	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "catpanel",
		Subsystem:   "badger",
		Name:        "last_gc_timestamp_seconds",
		Help:        "Unix timestamp of the last Badger value log GC run",
		ConstLabels: labels,
	})

	registry.MustRegister(
		s.metricsLSMSize,
		s.metricsValueLogSize,
		s.metricsLastGCTime,
	)

	go s.metricsUpdateLoop()

	return s
}

// metricsUpdateLoop periodically updates Prometheus metrics.
func (s *BadgerStore) metricsUpdateLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lsm, vlog := s.db.Size()
			s.metricsLSMSize.Set(float64(lsm))
			s.metricsValueLogSize.Set(float64(vlog))
			if last := s.lastGCTime.Load(); last > 0 {
				s.metricsLastGCTime.Set(float64(last) / 1000.0)
			}
		case <-s.stopCh:
			return
		}
	}
}

// gcLoop runs periodic value log garbage collection.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.GC(); err != nil {
				s.logger.Error("badger auto gc failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Badger is chatty at info level; its startup notes go to debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
