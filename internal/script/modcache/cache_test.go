package modcache

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BoxCatTeam/CatPanelBackend/internal/storage"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
)

func testStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Bolt.MapSize = 16 << 20
	cfg.Bolt.NoSync = true
	cfg.Badger.SyncWrites = false
	return cfg
}

func openTestCache(t *testing.T, backend storage.Backend) *Cache {
	t.Helper()
	c, err := Open(Config{
		CacheDir: t.TempDir(),
		Backend:  backend,
		Workers:  4,
		Storage:  testStorageConfig(),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpen_ArtifactLocation(t *testing.T) {
	tests := []struct {
		backend storage.Backend
		want    string
	}{
		{storage.BackendBolt, "remote_script.bolt"},
		{storage.BackendBadger, "remote_script.badger"},
		{storage.BackendSQLite, "remote_script.sqlite"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			dir := t.TempDir()
			c, err := Open(Config{CacheDir: dir, Backend: tt.backend, Storage: testStorageConfig()})
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()

			want := filepath.Join(dir, tt.want)
			if c.Path() != want {
				t.Errorf("Path() = %q, want %q", c.Path(), want)
			}
			if _, err := os.Stat(want); err != nil {
				t.Errorf("artifact missing: %v", err)
			}
			if c.Backend() != tt.backend {
				t.Errorf("Backend() = %q", c.Backend())
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(Config{CacheDir: t.TempDir(), Backend: "lmdb"}); err == nil {
		t.Fatal("Open() with unknown backend should fail")
	}
}

func TestOpen_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	// The cache dir is a regular file, so the parent cannot be created.
	_, err := Open(Config{CacheDir: filepath.Join(blocker, "cache"), Backend: storage.BackendBolt, Storage: testStorageConfig()})
	if !errors.Is(err, storage.ErrIo) {
		t.Errorf("Open() error = %v, want io error", err)
	}
}

func TestCache_Operations(t *testing.T) {
	for _, backend := range []storage.Backend{storage.BackendBolt, storage.BackendBadger, storage.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			c := openTestCache(t, backend)
			ctx := context.Background()

			if _, ok, err := c.Get(ctx, "/x/mod.ts"); err != nil || ok {
				t.Fatalf("Get() on empty cache = ok %v, err %v", ok, err)
			}

			if err := c.Put(ctx, "/x/mod.ts", []byte("export const a = 1;")); err != nil {
				t.Fatal(err)
			}
			if err := c.Put(ctx, "/y/mod.js", []byte("export default 2;")); err != nil {
				t.Fatal(err)
			}

			got, ok, err := c.Get(ctx, "/x/mod.ts")
			if err != nil || !ok || string(got) != "export const a = 1;" {
				t.Fatalf("Get() = %q, %v, %v", got, ok, err)
			}

			keys, err := c.Keys(ctx)
			if err != nil {
				t.Fatal(err)
			}
			sort.Strings(keys)
			if len(keys) != 2 || keys[0] != "/x/mod.ts" || keys[1] != "/y/mod.js" {
				t.Errorf("Keys() = %v", keys)
			}

			entries, err := c.Entries(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 2 {
				t.Errorf("Entries() = %d, want 2", len(entries))
			}

			if n, err := c.Len(); err != nil || n != 2 {
				t.Errorf("Len() = %d, %v", n, err)
			}

			if err := c.Remove(ctx, "/x/mod.ts"); err != nil {
				t.Fatal(err)
			}
			if err := c.Remove(ctx, "/x/mod.ts"); err != nil {
				t.Errorf("second Remove() error = %v", err)
			}
			if _, ok, _ := c.Get(ctx, "/x/mod.ts"); ok {
				t.Error("Get() after Remove() found the entry")
			}
		})
	}
}

func TestCache_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	c, err := Open(Config{CacheDir: t.TempDir(), Backend: storage.BackendBolt, Storage: testStorageConfig(), Metrics: reg})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	c.Get(ctx, "/a.ts")
	c.Put(ctx, "/a.ts", []byte("a"))
	c.Get(ctx, "/a.ts")
	c.Get(ctx, "/a.ts")

	if got := testutil.ToFloat64(reg.CacheRequests.WithLabelValues(metric.ResultMiss)); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.CacheRequests.WithLabelValues(metric.ResultHit)); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(reg.StorageOperations.WithLabelValues("bolt", "insert", metric.ResultOK)); got != 1 {
		t.Errorf("storage inserts = %v, want 1", got)
	}

	n, err := testutil.GatherAndCount(reg.Gatherer(), "catpanel_module_cache_entries")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("entries gauge series = %d, want 1", n)
	}
}

func TestCache_EmptyKey(t *testing.T) {
	c := openTestCache(t, storage.BackendBolt)
	err := c.Put(context.Background(), "", []byte("x"))
	if !errors.Is(err, storage.ErrEmptyKey) {
		t.Errorf("Put(\"\") error = %v", err)
	}
}

// blockingStore holds Insert until release is closed.
type blockingStore struct {
	storage.Store
	started chan struct{}
	release chan struct{}
}

func (s *blockingStore) Insert(key string, value []byte) error {
	s.started <- struct{}{}
	<-s.release
	return s.Store.Insert(key, value)
}

func newBlocking(t *testing.T) *blockingStore {
	t.Helper()
	base, err := storage.Open(storage.BackendBolt, filepath.Join(t.TempDir(), "c"), testStorageConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { base.Close() })
	return &blockingStore{Store: base, started: make(chan struct{}, 4), release: make(chan struct{})}
}

func TestCache_AbandonedPutCompletes(t *testing.T) {
	bs := newBlocking(t)
	c := New(bs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Put(ctx, "/late.ts", []byte("late")) }()

	<-bs.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Put() error = %v, want context.Canceled", err)
	}

	close(bs.release)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, err := c.Get(context.Background(), "/late.ts"); err == nil && ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("abandoned write never landed")
}

func TestCache_WorkerBound(t *testing.T) {
	bs := newBlocking(t)
	c := New(bs, 1)

	go c.Put(context.Background(), "/first.ts", []byte("1"))
	<-bs.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := c.Get(ctx, "/first.ts"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get() with full pool error = %v, want deadline exceeded", err)
	}

	close(bs.release)
	if _, _, err := c.Get(context.Background(), "/first.ts"); err != nil {
		t.Errorf("Get() after release error = %v", err)
	}
}

func TestCache_CanceledContext(t *testing.T) {
	c := openTestCache(t, storage.BackendBolt)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Get(ctx, "/a.ts"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://deno.land/std/fs/mod.ts", "/std/fs/mod.ts"},
		{"https://deno.land/std/fs/mod.ts?v=2#frag", "/std/fs/mod.ts"},
		{"http://other.host/std/fs/mod.ts", "/std/fs/mod.ts"},
		{"https://example.com", "/"},
		{"https://example.com/a%20b.ts", "/a%20b.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got := KeyFor(u); got != tt.want {
				t.Errorf("KeyFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCache_Closed(t *testing.T) {
	c, err := Open(Config{CacheDir: t.TempDir(), Backend: storage.BackendBadger, Storage: testStorageConfig()})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err = c.Put(context.Background(), "/a.ts", []byte("a"))
	if !errors.Is(err, storage.ErrClosed) || !errors.Is(err, storage.ErrBackend) {
		t.Errorf("Put() after Close() error = %v", err)
	}
	if _, err := c.Len(); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Len() after Close() error = %v", err)
	}
}

func TestCache_CloseWhileWaitingForWorker(t *testing.T) {
	bs := newBlocking(t)
	c := New(bs, 1)

	go c.Put(context.Background(), "/first.ts", []byte("1"))
	<-bs.started

	// Queue behind the busy worker, then close behind that.
	waiting := make(chan error, 1)
	go func() { waiting <- c.Put(context.Background(), "/second.ts", []byte("2")) }()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	time.Sleep(50 * time.Millisecond)

	close(bs.release)

	if err := <-waiting; !errors.Is(err, storage.ErrClosed) {
		t.Errorf("queued Put() error = %v, want ErrClosed", err)
	}
	if err := <-closed; err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if n := len(bs.started); n != 0 {
		t.Errorf("%d inserts reached the store after Close()", n)
	}
}
