package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/BoxCatTeam/CatPanelBackend/internal/server/httpserver/handler"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Loader handler.ModuleLoader
	Cache  handler.CacheAdmin
	Config handler.ConfigStore

	// Metrics is served on /metrics when set.
	Metrics *metric.Registry

	Logger *slog.Logger

	// RateLimit is the per-IP limit on /api/ in requests per second.
	// Zero disables it.
	RateLimit float64
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Loader, cfg.Cache, cfg.Config, log)

	base := []Middleware{RequestID(), Recover(log)}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", Chain(h, base...))
	mux.Handle("GET /readyz", Chain(h, base...))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), base...))
	}

	api := append([]Middleware{}, base...)
	api = append(api, AccessLog(log))
	if cfg.RateLimit > 0 {
		api = append(api, RateLimit(cfg.RateLimit))
	}
	mux.Handle("/api/", Chain(h, api...))

	return mux
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit: 50,
	}
}
