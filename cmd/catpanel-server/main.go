package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BoxCatTeam/CatPanelBackend/components"
	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/buildinfo"
	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/confloader"
	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/shutdown"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/fetch"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/loader"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/modcache"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/transpile"
	"github.com/BoxCatTeam/CatPanelBackend/internal/server/config"
	"github.com/BoxCatTeam/CatPanelBackend/internal/server/httpserver"
	"github.com/BoxCatTeam/CatPanelBackend/internal/server/localserver"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/tracer"
)

const serviceName = "catpanel-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", serviceName, buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting "+serviceName,
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"app_path", cfg.General.AppPath)

	ctx := context.Background()

	traceShutdown, err := tracer.Setup(ctx, serviceName, cfg.TraceConfig())
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	metrics := metric.NewRegistry()

	// A cache that cannot be opened is fatal.
	cache, err := modcache.Open(cfg.ModcacheConfig(metrics, slogLogger))
	if err != nil {
		return fmt.Errorf("open module cache: %w", err)
	}

	ld := loader.New(loader.Options{
		Fetcher:     fetch.New(cfg.FetchConfig()),
		Resources:   components.Bundled(),
		Transformer: transpile.New(cfg.TranspileConfig()),
		Cache:       cache,
		Metrics:     metrics,
		Concurrency: cfg.Loader.Concurrency,
	})

	preload(ctx, ld, cfg.Loader.Preload, log)

	holder := config.NewHolder(cfg, config.AutoPath(*configFile), config.Verify)

	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.Loader = ld
	routerCfg.Cache = cache
	routerCfg.Config = holder
	routerCfg.Metrics = metrics
	routerCfg.Logger = slogLogger
	router := httpserver.NewRouter(routerCfg)

	httpServer := httpserver.New(cfg.HTTP.Bind, router)

	var local *localserver.Server
	if cfg.HTTP.LocalSocket {
		local = localserver.New(cfg.General.SocketPath(), router)
	}

	watcher, err := watchConfig(*configFile, holder, slogLogger)
	if err != nil {
		log.Warn("config watcher disabled", "error", err)
	}

	sh := shutdown.NewHandler(30*time.Second, shutdown.WithLogger(slogLogger))

	// Hooks run in reverse order: servers stop before the cache closes.
	sh.OnClose("module cache", cache.Close)
	sh.OnShutdown("tracer", traceShutdown)
	if watcher != nil {
		sh.OnClose("config watcher", watcher.Stop)
	}
	sh.OnShutdown("http server", httpServer.Shutdown)
	if local != nil {
		sh.OnShutdown("local server", local.Shutdown)
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Bind)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			sh.Shutdown()
		}
	}()

	if local != nil {
		go func() {
			log.Info("local server listening", "socket", local.Path())
			if err := local.ListenAndServe(); err != nil {
				log.Error("local server error", "error", err)
			}
		}()
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadConfig(path string) (*config.ServerConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// preload warms the cache. Failures are logged and do not stop start-up.
func preload(ctx context.Context, ld *loader.Loader, specifiers []string, log logger.Logger) {
	if len(specifiers) == 0 {
		return
	}

	start := time.Now()
	srcs, err := ld.LoadAll(ctx, specifiers...)
	if err != nil {
		log.Warn("preload failed", "error", err, "code", loader.Code(err))
		return
	}

	var size int
	for _, s := range srcs {
		size += len(s.Code)
	}
	log.Info("preload complete",
		"modules", len(srcs),
		"bytes", size,
		"duration_ms", time.Since(start).Milliseconds())
}

// watchConfig reloads the configuration when the config file or its auto
// overrides change. Only the log level takes effect without a restart.
func watchConfig(path string, holder *config.Holder, log *slog.Logger) (*confloader.Watcher, error) {
	file := path
	if file == "" {
		file = config.DefaultConfigFile
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(abs); err != nil {
		w.Stop()
		return nil, err
	}
	if err := w.Watch(config.AutoPath(abs)); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(changed string) {
		next, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "file", changed, "error", err)
			return
		}
		prev := holder.Get()
		holder.Store(next)
		logger.SetLevel(next.Log.Level)

		if prev.Storage.Backend != next.Storage.Backend || prev.HTTP.Bind != next.HTTP.Bind {
			log.Warn("config reloaded; storage and listener changes apply after restart", "file", changed)
			return
		}
		log.Info("config reloaded", "file", changed, "log_level", next.Log.Level)
	})
	w.StartAsync()
	return w, nil
}
