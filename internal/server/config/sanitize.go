package config

import "github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"

// Sanitize returns a copy of the config with credentials removed from URLs,
// for logging the effective configuration.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	sanitized.Trace.Endpoint = logger.RedactString(cfg.Trace.Endpoint)

	if cfg.Loader.Preload != nil {
		sanitized.Loader.Preload = make([]string, len(cfg.Loader.Preload))
		for i, s := range cfg.Loader.Preload {
			sanitized.Loader.Preload[i] = logger.RedactString(s)
		}
	}

	return &sanitized
}
