package modcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/BoxCatTeam/CatPanelBackend/internal/storage"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
)

// RootName is the logical storage root under the cache directory.
const RootName = "remote_script"

// DefaultWorkers bounds concurrent backend calls when Config.Workers is unset.
const DefaultWorkers = 8

// Config configures Open.
type Config struct {
	// CacheDir is the application cache directory, <app_path>/cache.
	CacheDir string
	// Backend selects the engine. Empty means the platform default.
	Backend storage.Backend
	// Workers bounds concurrent backend calls.
	Workers int
	// Storage carries per-backend tuning.
	Storage storage.Config
	// Metrics is optional.
	Metrics *metric.Registry
	// Logger is optional.
	Logger *slog.Logger
}

// Cache is the module source cache. It is safe for concurrent use.
type Cache struct {
	store   storage.Store
	backend storage.Backend
	sem     *semaphore.Weighted
	size    int64
	closed  atomic.Bool
	metrics *metric.Registry
	logger  *slog.Logger
}

// Open opens the cache store under cfg.CacheDir. Errors are storage errors
// and are meant to abort process start-up.
func Open(cfg Config) (*Cache, error) {
	backend, err := storage.ParseBackend(string(cfg.Backend))
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Storage.Logger == nil {
		cfg.Storage.Logger = cfg.Logger
	}

	root := filepath.Join(cfg.CacheDir, RootName)
	store, err := storage.Open(backend, root, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("modcache: open %s: %w", root, err)
	}

	if cfg.Metrics != nil {
		if b, ok := store.(*storage.BadgerStore); ok {
			b.RegisterMetrics(cfg.Metrics.Registerer())
		}
	}

	c := New(storage.Instrument(store, backend, cfg.Metrics), cfg.Workers)
	c.backend = backend
	c.metrics = cfg.Metrics
	c.logger = cfg.Logger
	if cfg.Metrics != nil {
		cfg.Metrics.MustRegister(metric.NewCollector(c))
	}

	cfg.Logger.Info("module cache opened", "backend", string(backend), "path", store.Path(), "workers", c.size)
	return c, nil
}

// New wraps an already open store. workers <= 0 means DefaultWorkers.
func New(store storage.Store, workers int) *Cache {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Cache{
		store:  store,
		sem:    semaphore.NewWeighted(int64(workers)),
		size:   int64(workers),
		logger: slog.Default(),
	}
}

// KeyFor returns the cache key of a remote module URL: its path as it
// appears in the URL. Scheme, host and query do not participate, so the
// same path on two hosts shares one entry.
func KeyFor(u *url.URL) string {
	if p := u.EscapedPath(); p != "" {
		return p
	}
	return "/"
}

// Get returns the cached bytes for key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type hit struct {
		value []byte
		ok    bool
	}
	r, err := run(ctx, c, "get", func() (hit, error) {
		v, ok, err := c.store.Get(key)
		return hit{v, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	if c.metrics != nil {
		result := metric.ResultMiss
		if r.ok {
			result = metric.ResultHit
		}
		c.metrics.CacheRequests.WithLabelValues(result).Inc()
	}
	return r.value, r.ok, nil
}

// Put stores value under key. If ctx ends while the write is in flight the
// call returns ctx.Err() but the write still completes.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	_, err := run(ctx, c, "insert", func() (struct{}, error) {
		return struct{}{}, c.store.Insert(key, value)
	})
	return err
}

// Remove deletes key. Removing an absent key succeeds.
func (c *Cache) Remove(ctx context.Context, key string) error {
	_, err := run(ctx, c, "remove", func() (struct{}, error) {
		return struct{}{}, c.store.Remove(key)
	})
	return err
}

// Entries returns every cached entry.
func (c *Cache) Entries(ctx context.Context) ([]storage.Entry, error) {
	return run(ctx, c, "list", c.store.List)
}

// Keys returns every cached key.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return run(ctx, c, "keys", c.store.Keys)
}

// Len returns the number of cached entries. It runs on the caller's
// goroutine and is used by the metrics collector at scrape time.
func (c *Cache) Len() (int, error) {
	if c.closed.Load() {
		return 0, storage.ErrClosed
	}
	keys, err := c.store.Keys()
	return len(keys), err
}

// Path returns the backend artifact path.
func (c *Cache) Path() string {
	return c.store.Path()
}

// Backend returns the engine in use, or "" when c was built by New.
func (c *Cache) Backend() storage.Backend {
	return c.backend
}

// Close waits for in-flight backend calls and closes the store. Later
// calls fail with storage.ErrClosed. Closing twice is a no-op.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	// Holding every slot drains the pool.
	_ = c.sem.Acquire(context.Background(), c.size)
	defer c.sem.Release(c.size)
	return c.store.Close()
}

// run executes fn on the worker pool and waits for it or for ctx.
func run[T any](ctx context.Context, c *Cache, op string, fn func() (T, error)) (T, error) {
	var zero T
	if c.closed.Load() {
		return zero, c.closedErr(op)
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	// Close may have drained the pool while we waited for a slot.
	if c.closed.Load() {
		c.sem.Release(1)
		return zero, c.closedErr(op)
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer c.sem.Release(1)
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache) closedErr(op string) error {
	return &storage.Error{Kind: storage.KindBackend, Backend: c.backend, Op: op, Path: c.store.Path(), Err: storage.ErrClosed}
}
