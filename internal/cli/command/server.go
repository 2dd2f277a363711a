package command

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/output"
)

// ServerCommand returns the server subcommand group.
func ServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Manage a running catpanel-server",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show readiness and cache status",
				Action: serverStatus,
			},
			{
				Name:  "cache",
				Usage: "Server-side cache administration",
				Subcommands: []*cli.Command{
					{
						Name:   "keys",
						Usage:  "List cached keys",
						Flags:  []cli.Flag{prefixFlag()},
						Action: serverCacheKeys,
					},
					{
						Name:      "rm",
						Usage:     "Remove a cached key",
						ArgsUsage: "KEY",
						Action:    serverCacheRemove,
					},
				},
			},
			{
				Name:  "config",
				Usage: "Runtime configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Show the live configuration, or one dotted KEY of it",
						ArgsUsage: "[KEY]",
						Action:    serverConfigGet,
					},
					{
						Name:      "set",
						Usage:     "Merge KEY=VALUE pairs into the live configuration",
						ArgsUsage: "KEY=VALUE...",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "persist",
								Usage: "Also write the result to _config_auto.yaml",
							},
						},
						Action: serverConfigSet,
					},
				},
			},
		},
	}
}

// ServerStatus is the output of server status.
type ServerStatus struct {
	Server  string `json:"server" yaml:"server"`
	Status  string `json:"status" yaml:"status"`
	Backend string `json:"backend" yaml:"backend"`
	Path    string `json:"path" yaml:"path"`
	Entries int    `json:"entries" yaml:"entries"`
}

// Table implements output.Tabular.
func (s ServerStatus) Table() *output.Table {
	t := output.NewTable("SERVER", "STATUS", "BACKEND", "PATH", "ENTRIES")
	t.AddRow(s.Server, s.Status, s.Backend, s.Path, strconv.Itoa(s.Entries))
	return t
}

func serverStatus(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	var ready struct {
		Status string `json:"status"`
	}
	if err := client.Get(c.Context, "/readyz", &ready); err != nil {
		return fmt.Errorf("server not ready: %w", err)
	}

	var cache struct {
		Backend string `json:"backend"`
		Path    string `json:"path"`
		Entries int    `json:"entries"`
	}
	if err := client.Get(c.Context, "/api/v1/cache", &cache); err != nil {
		return err
	}

	return render(c, ServerStatus{
		Server:  client.BaseURL(),
		Status:  ready.Status,
		Backend: cache.Backend,
		Path:    cache.Path,
		Entries: cache.Entries,
	})
}

func serverCacheKeys(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	path := "/api/v1/cache/keys"
	if p := c.String("prefix"); p != "" {
		path += "?" + url.Values{"prefix": {p}}.Encode()
	}

	var resp struct {
		Keys []string `json:"keys"`
	}
	if err := client.Get(c.Context, path, &resp); err != nil {
		return err
	}
	return render(c, resp.Keys)
}

func serverCacheRemove(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return cli.Exit("KEY is required", 1)
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	if err := client.Delete(c.Context, "/api/v1/cache/keys?"+url.Values{"key": {key}}.Encode(), nil); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %s\n", key)
	return nil
}

func serverConfigGet(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	var cfg map[string]any
	if err := client.Get(c.Context, "/api/v1/config", &cfg); err != nil {
		return err
	}

	key := c.Args().First()
	if key == "" {
		return render(c, cfg)
	}
	v, ok := lookup(cfg, key)
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown config key %q", key), 1)
	}
	if m, ok := v.(map[string]any); ok {
		return render(c, m)
	}
	_, err = fmt.Fprintln(c.App.Writer, v)
	return err
}

func serverConfigSet(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one KEY=VALUE is required", 1)
	}

	overrides := map[string]any{}
	for _, arg := range c.Args().Slice() {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return cli.Exit(fmt.Sprintf("invalid assignment %q, want KEY=VALUE", arg), 1)
		}
		value, err := parseValue(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		setPath(overrides, strings.Split(key, "."), value)
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	body := map[string]any{"config": overrides, "persist": c.Bool("persist")}
	var merged map[string]any
	if err := client.Post(c.Context, "/api/v1/config", body, &merged); err != nil {
		return err
	}

	keys := make([]string, 0, len(overrides))
	for _, arg := range c.Args().Slice() {
		k, _, _ := strings.Cut(arg, "=")
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := lookup(merged, k)
		fmt.Fprintf(c.App.Writer, "%s = %v\n", k, v)
	}
	return nil
}

// parseValue reads a command-line value as a YAML scalar or sequence so
// numbers, booleans and lists keep their type.
func parseValue(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	if v == nil {
		return raw, nil
	}
	return v, nil
}

// setPath stores v at the nested position named by keys.
func setPath(m map[string]any, keys []string, v any) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// lookup walks a dotted key through nested maps.
func lookup(m map[string]any, key string) (any, bool) {
	var cur any = m
	for _, k := range strings.Split(key, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
