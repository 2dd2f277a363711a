package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/BoxCatTeam/CatPanelBackend/internal/script/loader"
	"github.com/BoxCatTeam/CatPanelBackend/internal/storage"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
)

// Verify validates the configuration and prepares the application
// directories. It expands a leading ~ in general.app_path in place and
// creates the app, cache and components directories.
func Verify(cfg *ServerConfig) error {
	if err := verifyGeneral(&cfg.General); err != nil {
		return err
	}
	if err := verifyHTTP(&cfg.HTTP); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyFetch(&cfg.Fetch); err != nil {
		return err
	}
	if err := verifyLoader(&cfg.Loader); err != nil {
		return err
	}
	if err := verifyTrace(&cfg.Trace); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return initDirs(&cfg.General)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

func verifyGeneral(cfg *GeneralSection) error {
	if cfg.AppPath == "" {
		return errors.New("general.app_path is required")
	}
	p, err := ExpandHome(cfg.AppPath)
	if err != nil {
		return err
	}
	cfg.AppPath = filepath.Clean(p)
	return nil
}

func verifyHTTP(cfg *HTTPSection) error {
	host, port, err := net.SplitHostPort(cfg.Bind)
	if err != nil {
		return fmt.Errorf("http.bind %q: %w", cfg.Bind, err)
	}
	if host != "" && net.ParseIP(host) == nil {
		return fmt.Errorf("http.bind %q: host must be an IP address", cfg.Bind)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("http.bind %q: invalid port", cfg.Bind)
	}
	if cfg.SystemInfoRefreshLimit < 0 {
		return errors.New("http.system_info_refresh_limit must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if _, err := storage.ParseBackend(cfg.Backend); err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	if cfg.Workers < 1 {
		return errors.New("storage.workers must be at least 1")
	}
	if cfg.Bolt.MapSize < 0 {
		return errors.New("storage.bolt.map_size must not be negative")
	}
	if cfg.Badger.GCThreshold < 0 || cfg.Badger.GCThreshold >= 1 {
		return errors.New("storage.badger.gc_threshold must be in [0, 1)")
	}
	if lvl := cfg.SQLite.CompressionLevel; lvl != "" {
		if ok, _ := zstd.EncoderLevelFromString(lvl); !ok {
			return fmt.Errorf("storage.sqlite.compression_level %q is not a zstd level", lvl)
		}
	}
	if cfg.SQLite.MinCompressSize < 0 {
		return errors.New("storage.sqlite.min_compress_size must not be negative")
	}
	return nil
}

func verifyFetch(cfg *FetchSection) error {
	if cfg.Timeout < 0 {
		return errors.New("fetch.timeout must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("fetch.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.Burst < 1 {
		return errors.New("fetch.burst must be at least 1 when rate_limit is set")
	}
	if cfg.MaxBodyBytes < 0 {
		return errors.New("fetch.max_body_bytes must not be negative")
	}
	return nil
}

func verifyLoader(cfg *LoaderSection) error {
	if cfg.Concurrency < 1 {
		return errors.New("loader.concurrency must be at least 1")
	}
	for _, s := range cfg.Preload {
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("loader.preload %q: %w", logger.RedactString(s), err)
		}
		if _, err := loader.ParseSpecifier(u); err != nil {
			return fmt.Errorf("loader.preload: %w", err)
		}
	}
	return nil
}

func verifyTrace(cfg *TraceSection) error {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return errors.New("trace.sample_ratio must be in [0, 1]")
	}
	if cfg.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("trace.endpoint %q must be an http(s) URL", logger.RedactString(cfg.Endpoint))
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Format)
	}
	return nil
}

func initDirs(cfg *GeneralSection) error {
	for _, dir := range []string{cfg.AppPath, cfg.CacheDir(), cfg.ComponentsDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}
