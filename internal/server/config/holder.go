package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/confloader"
)

// Load reads the configuration in precedence order: defaults,
// _config_auto.yaml next to the config file, the config file itself, and
// CP_ environment variables. An empty path means config.yaml in the
// working directory, which may be absent; an explicit path must exist.
func Load(path string) (*ServerConfig, error) {
	required := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	opts := []confloader.Option{confloader.WithOptionalFile(AutoPath(path))}
	if required {
		opts = append(opts, confloader.WithConfigFile(path))
	} else {
		opts = append(opts, confloader.WithOptionalFile(path))
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AutoPath returns the runtime overrides file that sits beside configPath.
func AutoPath(configPath string) string {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return filepath.Join(filepath.Dir(configPath), AutoConfigFile)
}

// Holder publishes the current configuration. Readers never block.
type Holder struct {
	cur      atomic.Pointer[ServerConfig]
	mu       sync.Mutex // serialises Merge
	autoPath string
	validate func(*ServerConfig) error
}

// NewHolder returns a holder serving cfg. Persisted merges are written to
// autoPath. A non-nil validate must accept a merged configuration before
// it is stored.
func NewHolder(cfg *ServerConfig, autoPath string, validate func(*ServerConfig) error) *Holder {
	h := &Holder{autoPath: autoPath, validate: validate}
	h.cur.Store(cfg)
	return h
}

// Get returns the current configuration. Callers must not modify it.
func (h *Holder) Get() *ServerConfig {
	return h.cur.Load()
}

// Store replaces the current configuration.
func (h *Holder) Store(cfg *ServerConfig) {
	h.cur.Store(cfg)
}

// Merge overlays overrides, a nested map keyed like the YAML file, on the
// current configuration. With persist set the merged result is also
// written to the auto config file so it survives a restart.
//
//	h.Merge(map[string]any{"http": map[string]any{"bind": "127.0.0.1:9000"}}, false)
func (h *Holder) Merge(overrides map[string]any, persist bool) (*ServerConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	l := confloader.NewLoader()
	if err := l.LoadStruct(h.cur.Load()); err != nil {
		return nil, err
	}
	if err := l.LoadMap(overrides); err != nil {
		return nil, err
	}

	next := &ServerConfig{}
	if err := l.Unmarshal(next); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}
	if h.validate != nil {
		if err := h.validate(next); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}

	if persist {
		if err := l.Persist(h.autoPath); err != nil {
			return nil, err
		}
	}

	h.cur.Store(next)
	return next, nil
}
