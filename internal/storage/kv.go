package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store is the key-value contract shared by every embedded backend.
//
// Every mutating call commits fully before it returns, so a Store can be
// shared by any number of goroutines without extra locking. Backends differ
// only in durability mechanics and performance, never in the observable
// behaviour of these methods.
type Store interface {
	// Insert creates or overwrites key in a single committed transaction.
	Insert(key string, value []byte) error

	// Get returns the most recently committed value for key.
	// ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Exists reports whether key has a committed value.
	Exists(key string) (bool, error)

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// List returns every entry from one consistent snapshot.
	// Order is backend-defined.
	List() ([]Entry, error)

	// Keys returns every key from one consistent snapshot.
	Keys() ([]string, error)

	// Path returns the backend artifact path derived from the logical root.
	Path() string

	// Close releases the engine. The store must not be used afterwards.
	Close() error
}

// Entry is one key-value pair returned by List.
type Entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Backend names one storage engine variant.
type Backend string

const (
	// BackendBolt is the memory-mapped B+tree store (boltdb).
	BackendBolt Backend = "bolt"
	// BackendBadger is the log-structured value-log store (badger).
	BackendBadger Backend = "badger"
	// BackendSQLite is the page-based table store (sqlite) with zstd values.
	BackendSQLite Backend = "sqlite"
	// BackendDefault selects DefaultBackend for the build platform.
	BackendDefault Backend = "default"
)

// Extension returns the artifact extension owned by the backend.
// Extensions are distinct so two backends never open each other's files.
func (b Backend) Extension() string {
	switch b {
	case BackendBolt:
		return "bolt"
	case BackendBadger:
		return "badger"
	case BackendSQLite:
		return "sqlite"
	default:
		return ""
	}
}

// ParseBackend parses a backend name. An empty name means BackendDefault.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case "", BackendDefault:
		return DefaultBackend, nil
	case BackendBolt, BackendBadger, BackendSQLite:
		return b, nil
	default:
		return "", fmt.Errorf("storage: unknown backend %q", name)
	}
}

// Config holds the tuning knobs of every backend.
type Config struct {
	Bolt   BoltConfig
	Badger BadgerConfig
	SQLite SQLiteConfig

	// Logger is used by backends that log (badger). Defaults to slog.Default().
	Logger *slog.Logger
}

// BoltConfig configures the bolt backend.
type BoltConfig struct {
	// MapSize is the address space reserved for the memory map up front.
	// Default: 1GiB. Sparse files keep the on-disk footprint small.
	MapSize int

	// NoSync skips fsync on commit. Only for tests and benchmarks.
	NoSync bool

	// Timeout bounds waiting for the file lock held by another process.
	Timeout time.Duration
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log segment size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites fsyncs every commit.
	// Default: true, since the store is the only durability layer.
	SyncWrites bool
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// CompressionLevel is one of "fastest", "default", "better", "best".
	CompressionLevel string

	// MinCompressSize is the smallest value that gets compressed.
	// Smaller values are stored raw behind a codec header.
	MinCompressSize int

	// BusyTimeout is how long a writer waits for the database lock.
	BusyTimeout time.Duration
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() Config {
	return Config{
		Bolt:   DefaultBoltConfig(),
		Badger: DefaultBadgerConfig(),
		SQLite: DefaultSQLiteConfig(),
		Logger: slog.Default(),
	}
}

// DefaultBoltConfig returns the default bolt configuration.
func DefaultBoltConfig() BoltConfig {
	return BoltConfig{
		MapSize: 1 << 30, // 1GiB
		Timeout: 5 * time.Second,
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        16 << 20, // 16MB
		ValueLogFileSize: 64 << 20, // 64MB
		SyncWrites:       true,
	}
}

// DefaultSQLiteConfig returns the default sqlite configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		CompressionLevel: "default",
		MinCompressSize:  256,
		BusyTimeout:      5 * time.Second,
	}
}

// Open opens the store of the given backend rooted at the logical path root.
func Open(backend Backend, root string, cfg Config) (Store, error) {
	if backend == "" || backend == BackendDefault {
		backend = DefaultBackend
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	switch backend {
	case BackendBolt:
		return OpenBolt(root, cfg.Bolt)
	case BackendBadger:
		return OpenBadger(root, cfg.Badger, cfg.Logger)
	case BackendSQLite:
		return OpenSQLite(root, cfg.SQLite)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

// OpenDefault opens the platform default backend.
func OpenDefault(root string, cfg Config) (Store, error) {
	return Open(DefaultBackend, root, cfg)
}

// ArtifactPath maps a logical root to the artifact path of a backend.
//
// The extension of the root's last element (text after its final ".") is
// replaced, or the backend extension is appended when there is none. A root
// such as "cache/scripts.v1" therefore becomes "cache/scripts.bolt"; use
// PadRoot first when the last element carries a dot.
func ArtifactPath(root string, backend Backend) string {
	root = filepath.Clean(root)
	dir, base := filepath.Split(root)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return filepath.Join(dir, base+"."+backend.Extension())
}

// PadRoot appends a ".0" placeholder when the last element of root contains
// a dot, so ArtifactPath replaces the placeholder instead of part of the
// intended name: "scripts.v1" becomes "scripts.v1.0" and maps to
// "scripts.v1.bolt".
func PadRoot(root string) string {
	root = filepath.Clean(root)
	if strings.IndexByte(filepath.Base(root), '.') > 0 {
		return root + ".0"
	}
	return root
}

// ensureParent creates the parent directory of path.
func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}

func checkKey(backend Backend, op, path, key string) error {
	if key == "" {
		return &Error{Kind: KindBackend, Backend: backend, Op: op, Path: path, Err: ErrEmptyKey}
	}
	return nil
}
