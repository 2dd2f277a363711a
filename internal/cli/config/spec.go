// Package config holds catpanel-cli preferences, read from
// ~/.cat_panel/cli.yaml and CPCLI_ environment variables.
package config

// CLIConfig is the configuration for catpanel-cli.
type CLIConfig struct {
	// Server is the admin API address: host:port, an http(s) URL or
	// unix:///path. Empty means the local socket of ServerConfig's app
	// directory.
	Server string `koanf:"server"`

	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output"`

	// ServerConfig is the catpanel-server config file used by offline
	// commands to find the cache.
	ServerConfig string `koanf:"server_config"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Output: "table",
	}
}
