package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/BoxCatTeam/CatPanelBackend/internal/script/fetch"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/modcache"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/transpile"
	"github.com/BoxCatTeam/CatPanelBackend/internal/storage"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/tracer"
)

// ServerConfig is the root configuration for catpanel-server.
type ServerConfig struct {
	General GeneralSection `koanf:"general" json:"general"`
	HTTP    HTTPSection    `koanf:"http" json:"http"`
	Storage StorageSection `koanf:"storage" json:"storage"`
	Fetch   FetchSection   `koanf:"fetch" json:"fetch"`
	Loader  LoaderSection  `koanf:"loader" json:"loader"`
	Trace   TraceSection   `koanf:"trace" json:"trace"`
	Log     LogSection     `koanf:"log" json:"log"`
}

// GeneralSection holds application paths.
type GeneralSection struct {
	// AppPath is the application data directory. A leading ~ expands to
	// the home directory.
	AppPath string `koanf:"app_path" json:"app_path"`
}

// CacheDir returns <app_path>/cache.
func (g GeneralSection) CacheDir() string {
	return filepath.Join(g.AppPath, "cache")
}

// ComponentsDir returns <app_path>/components.
func (g GeneralSection) ComponentsDir() string {
	return filepath.Join(g.AppPath, "components")
}

// SocketPath returns <app_path>/catpanel.sock.
func (g GeneralSection) SocketPath() string {
	return filepath.Join(g.AppPath, SocketFile)
}

// HTTPSection configures the HTTP listener.
type HTTPSection struct {
	Bind string `koanf:"bind" json:"bind"`

	// SystemInfoRefreshLimit is the minimum interval between system info
	// samples served to clients.
	SystemInfoRefreshLimit time.Duration `koanf:"system_info_refresh_limit" json:"system_info_refresh_limit"`

	// LocalSocket also serves the admin API on General.SocketPath().
	LocalSocket bool `koanf:"local_socket" json:"local_socket"`
}

// StorageSection configures the module cache store.
type StorageSection struct {
	// Backend is one of default, bolt, badger, sqlite.
	Backend string        `koanf:"backend" json:"backend"`
	Workers int           `koanf:"workers" json:"workers"`
	Bolt    BoltSection   `koanf:"bolt" json:"bolt"`
	Badger  BadgerSection `koanf:"badger" json:"badger"`
	SQLite  SQLiteSection `koanf:"sqlite" json:"sqlite"`
}

type BoltSection struct {
	MapSize int           `koanf:"map_size" json:"map_size"`
	NoSync  bool          `koanf:"no_sync" json:"no_sync"`
	Timeout time.Duration `koanf:"timeout" json:"timeout"`
}

type BadgerSection struct {
	GCInterval  time.Duration `koanf:"gc_interval" json:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" json:"gc_threshold"`
	SyncWrites  bool          `koanf:"sync_writes" json:"sync_writes"`
	CacheSize   int64         `koanf:"cache_size" json:"cache_size"`
}

type SQLiteSection struct {
	CompressionLevel string        `koanf:"compression_level" json:"compression_level"`
	MinCompressSize  int           `koanf:"min_compress_size" json:"min_compress_size"`
	BusyTimeout      time.Duration `koanf:"busy_timeout" json:"busy_timeout"`
}

// FetchSection configures remote module downloads.
type FetchSection struct {
	Timeout      time.Duration `koanf:"timeout" json:"timeout"`
	RateLimit    float64       `koanf:"rate_limit" json:"rate_limit"`
	Burst        int           `koanf:"burst" json:"burst"`
	MaxBodyBytes int64         `koanf:"max_body_bytes" json:"max_body_bytes"`
}

// LoaderSection configures module loading.
type LoaderSection struct {
	// Preload lists specifiers loaded at start-up to warm the cache.
	Preload         []string `koanf:"preload" json:"preload"`
	Concurrency     int      `koanf:"concurrency" json:"concurrency"`
	InlineSourceMap bool     `koanf:"inline_source_map" json:"inline_source_map"`
}

// TraceSection configures span export.
type TraceSection struct {
	// Endpoint is an OTLP/HTTP collector URL. Empty disables export.
	Endpoint    string  `koanf:"endpoint" json:"endpoint"`
	SampleRatio float64 `koanf:"sample_ratio" json:"sample_ratio"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// StorageConfig converts the storage section for storage.Open.
func (c *ServerConfig) StorageConfig(log *slog.Logger) storage.Config {
	s := c.Storage
	cfg := storage.DefaultConfig()
	cfg.Bolt.MapSize = s.Bolt.MapSize
	cfg.Bolt.NoSync = s.Bolt.NoSync
	if s.Bolt.Timeout > 0 {
		cfg.Bolt.Timeout = s.Bolt.Timeout
	}
	cfg.Badger.GCInterval = s.Badger.GCInterval
	cfg.Badger.GCThreshold = s.Badger.GCThreshold
	cfg.Badger.SyncWrites = s.Badger.SyncWrites
	if s.Badger.CacheSize > 0 {
		cfg.Badger.CacheSize = s.Badger.CacheSize
	}
	cfg.SQLite.CompressionLevel = s.SQLite.CompressionLevel
	cfg.SQLite.MinCompressSize = s.SQLite.MinCompressSize
	if s.SQLite.BusyTimeout > 0 {
		cfg.SQLite.BusyTimeout = s.SQLite.BusyTimeout
	}
	if log != nil {
		cfg.Logger = log
	}
	return cfg
}

// ModcacheConfig returns the module cache settings rooted at the cache dir.
// The backend name must already have passed Verify.
func (c *ServerConfig) ModcacheConfig(reg *metric.Registry, log *slog.Logger) modcache.Config {
	backend, _ := storage.ParseBackend(c.Storage.Backend)
	return modcache.Config{
		CacheDir: c.General.CacheDir(),
		Backend:  backend,
		Workers:  c.Storage.Workers,
		Storage:  c.StorageConfig(log),
		Metrics:  reg,
		Logger:   log,
	}
}

// FetchConfig converts the fetch section.
func (c *ServerConfig) FetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:      c.Fetch.Timeout,
		RateLimit:    c.Fetch.RateLimit,
		Burst:        c.Fetch.Burst,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
	}
}

// TranspileConfig converts the loader section's transform settings.
func (c *ServerConfig) TranspileConfig() transpile.Config {
	return transpile.Config{InlineSourceMap: c.Loader.InlineSourceMap}
}

// LoggerConfig converts the log section.
func (c *ServerConfig) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

// TraceConfig converts the trace section.
func (c *ServerConfig) TraceConfig() tracer.Config {
	return tracer.Config{Endpoint: c.Trace.Endpoint, SampleRatio: c.Trace.SampleRatio}
}
