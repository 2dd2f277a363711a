// Package handler implements the admin API: module loading, cache
// inspection and runtime configuration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BoxCatTeam/CatPanelBackend/internal/script/loader"
	"github.com/BoxCatTeam/CatPanelBackend/internal/server/config"
	"github.com/BoxCatTeam/CatPanelBackend/internal/storage"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
)

// ModuleLoader resolves and loads modules.
type ModuleLoader interface {
	Resolve(specifier, referrer string) (*url.URL, error)
	Load(ctx context.Context, u *url.URL) (*loader.ModuleSource, error)
}

// CacheAdmin exposes the remote module cache.
type CacheAdmin interface {
	Keys(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, key string) error
	Len() (int, error)
	Path() string
	Backend() storage.Backend
}

// ConfigStore holds the live configuration.
type ConfigStore interface {
	Get() *config.ServerConfig
	Merge(overrides map[string]any, persist bool) (*config.ServerConfig, error)
}

// Handler routes API requests. Nil dependencies disable their endpoints.
type Handler struct {
	loader ModuleLoader
	cache  CacheAdmin
	config ConfigStore
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a new Handler.
func New(ml ModuleLoader, cache CacheAdmin, cfg ConfigStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		loader: ml,
		cache:  cache,
		config: cfg,
		logger: log,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)

	if h.loader != nil {
		h.mux.HandleFunc("GET /api/v1/modules", h.handleLoadModule)
	}
	if h.cache != nil {
		h.mux.HandleFunc("GET /api/v1/cache", h.handleCacheStatus)
		h.mux.HandleFunc("GET /api/v1/cache/keys", h.handleCacheKeys)
		h.mux.HandleFunc("DELETE /api/v1/cache/keys", h.handleCacheRemove)
	}
	if h.config != nil {
		h.mux.HandleFunc("GET /api/v1/config", h.handleGetConfig)
		h.mux.HandleFunc("POST /api/v1/config", h.handleMergeConfig)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details)); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// handleServiceError maps loader and storage errors to responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code := loader.Code(err); code != "" {
		h.writeError(w, r, errorCodeToHTTPStatus(code), code, err.Error(), nil)
		return
	}

	var se *storage.Error
	if errors.As(err, &se) {
		logger.L(r.Context()).Error("storage error", "error", err)
		h.writeError(w, r, http.StatusServiceUnavailable, "CP-STOR-5030", "module cache unavailable", map[string]string{"kind": string(se.Kind)})
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "CP-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4150"):
		return http.StatusUnsupportedMediaType
	case strings.HasSuffix(code, "-4220"):
		return http.StatusUnprocessableEntity
	case strings.HasSuffix(code, "-5020"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
