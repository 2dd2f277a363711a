package config

import (
	"os"
	"path/filepath"

	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/confloader"
)

// EnvPrefix is the environment variable prefix for CLI settings.
const EnvPrefix = "CPCLI_"

// DefaultConfigPath returns ~/.cat_panel/cli.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cat_panel", "cli.yaml")
	}
	return filepath.Join(homeDir, ".cat_panel", "cli.yaml")
}

// Load reads path over the defaults and applies CPCLI_ variables. A
// missing file is not an error.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	l := confloader.NewLoader(
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithOptionalFile(path),
	)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	l := confloader.NewLoader()
	if err := l.LoadStruct(cfg); err != nil {
		return err
	}
	return l.Persist(path)
}
