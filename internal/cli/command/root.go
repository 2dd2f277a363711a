// Package command provides CLI command definitions for catpanel-cli.
//
// Commands under cache and module open the module cache directly and work
// without a running server. Commands under server talk to the admin API.
package command

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/BoxCatTeam/CatPanelBackend/internal/cli/config"
	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/connection"
	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/output"
	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/buildinfo"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/modcache"
	"github.com/BoxCatTeam/CatPanelBackend/internal/server/config"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
)

const cliConfigKey = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "catpanel-cli",
		Usage:   "CatPanel module cache and server management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CacheCommand(),
			ModuleCommand(),
			ServerCommand(),
			VersionCommand(),
		},
		Before: loadCLIConfig,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "cli-config",
			Usage: "CLI configuration file (default ~/.cat_panel/cli.yaml)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "catpanel-server configuration file",
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Override the cache backend: default, bolt, badger, sqlite",
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server address: host:port, http(s) URL or unix:///path",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
	}
}

// loadCLIConfig fills unset global flags from the CLI config file.
func loadCLIConfig(c *cli.Context) error {
	cfg, err := cliconfig.Load(c.String("cli-config"))
	if err != nil {
		return fmt.Errorf("load cli config: %w", err)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[cliConfigKey] = cfg

	defaults := map[string]string{
		"server": cfg.Server,
		"output": cfg.Output,
		"config": cfg.ServerConfig,
	}
	for name, v := range defaults {
		if v == "" || c.IsSet(name) {
			continue
		}
		if err := c.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config  string
	Backend string
	Server  string
	Output  string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:  c.String("config"),
		Backend: c.String("backend"),
		Server:  c.String("server"),
		Output:  c.String("output"),
	}
}

// serverConfig loads the server configuration the offline commands work on.
func serverConfig(c *cli.Context) (*config.ServerConfig, error) {
	flags := ParseGlobalFlags(c)

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if flags.Backend != "" {
		cfg.Storage.Backend = flags.Backend
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

// openCache opens the module cache described by the server configuration.
// The caller closes it.
func openCache(c *cli.Context) (*modcache.Cache, *config.ServerConfig, error) {
	cfg, err := serverConfig(c)
	if err != nil {
		return nil, nil, err
	}
	mc := cfg.ModcacheConfig(nil, quietLogger())
	cache, err := modcache.Open(mc)
	if err != nil {
		return nil, nil, err
	}
	return cache, cfg, nil
}

// EnsureConnected returns a client for the configured server. Without
// --server it prefers the local socket of the server's app directory and
// falls back to http.bind.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	if server := ParseGlobalFlags(c).Server; server != "" {
		return connection.NewHTTPClient(server), nil
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	appPath, err := config.ExpandHome(cfg.General.AppPath)
	if err != nil {
		return nil, err
	}
	cfg.General.AppPath = appPath

	sock := cfg.General.SocketPath()
	if _, err := os.Stat(sock); err == nil {
		return connection.NewHTTPClient("unix://" + sock), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return connection.NewHTTPClient(cfg.HTTP.Bind), nil
}

// formatter returns the formatter selected by --output.
func formatter(c *cli.Context) (output.Formatter, error) {
	f, err := output.ParseFormat(ParseGlobalFlags(c).Output)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(f), nil
}

// render writes data to the app writer in the selected format.
func render(c *cli.Context, data any) error {
	f, err := formatter(c)
	if err != nil {
		return err
	}
	return f.Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// quietLogger keeps library logging off stdout and below warn.
func quietLogger() *slog.Logger {
	log, err := logger.New(logger.Config{Level: "warn", Format: "text", Output: os.Stderr})
	if err != nil {
		return slog.Default()
	}
	return log.Slog()
}
