package command

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/BoxCatTeam/CatPanelBackend/components"
	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/output"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/fetch"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/loader"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/transpile"
)

// ModuleCommand returns the module subcommand group.
func ModuleCommand() *cli.Command {
	return &cli.Command{
		Name:    "module",
		Aliases: []string{"mod"},
		Usage:   "Resolve and load script modules",
		Subcommands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Resolve a specifier and show where it would load from",
				ArgsUsage: "SPECIFIER",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "referrer",
						Aliases: []string{"r"},
						Usage:   "Absolute URL of the importing module",
					},
				},
				Action: moduleResolve,
			},
			{
				Name:      "load",
				Usage:     "Load modules through the cache, fetching remote ones",
				ArgsUsage: "URL...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Write the loaded code instead of a summary",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Load through the running server instead of locally",
					},
				},
				Action: moduleLoad,
			},
		},
	}
}

// Resolution is the output of module resolve.
type Resolution struct {
	URL    string `json:"url" yaml:"url"`
	Scheme string `json:"scheme" yaml:"scheme"`
	Source string `json:"source" yaml:"source"`
	Kind   string `json:"kind" yaml:"kind"`
	Type   string `json:"type" yaml:"type"`
}

// Table implements output.Tabular.
func (r Resolution) Table() *output.Table {
	t := output.NewTable("URL", "SCHEME", "SOURCE", "KIND", "TYPE")
	t.AddRow(r.URL, r.Scheme, r.Source, r.Kind, r.Type)
	return t
}

func moduleResolve(c *cli.Context) error {
	spec := c.Args().First()
	if spec == "" {
		return cli.Exit("SPECIFIER is required", 1)
	}

	u, err := loader.Resolve(spec, c.String("referrer"))
	if err != nil {
		return err
	}
	parsed, err := loader.ParseSpecifier(u)
	if err != nil {
		return err
	}
	kind := loader.ClassifyPath(u.Path)

	return render(c, Resolution{
		URL:    u.String(),
		Scheme: parsed.Scheme(),
		Source: parsed.Kind.String(),
		Kind:   kind.String(),
		Type:   kind.ModuleType().String(),
	})
}

// LoadedModule is one row of module load.
type LoadedModule struct {
	Specified string `json:"specified" yaml:"specified"`
	Kind      string `json:"kind" yaml:"kind"`
	Type      string `json:"type" yaml:"type"`
	Size      int    `json:"size" yaml:"size"`
}

// LoadedModules is the output of module load.
type LoadedModules []LoadedModule

// Table implements output.Tabular.
func (m LoadedModules) Table() *output.Table {
	t := output.NewTable("SPECIFIED", "KIND", "TYPE", "SIZE")
	for _, mod := range m {
		t.AddRow(mod.Specified, mod.Kind, mod.Type, strconv.Itoa(mod.Size))
	}
	return t
}

func moduleLoad(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one URL is required", 1)
	}
	if c.Bool("remote") {
		return moduleLoadRemote(c)
	}

	cache, cfg, err := openCache(c)
	if err != nil {
		return err
	}
	defer cache.Close()

	ld := loader.New(loader.Options{
		Fetcher:     fetch.New(cfg.FetchConfig()),
		Resources:   components.Bundled(),
		Transformer: transpile.New(cfg.TranspileConfig()),
		Cache:       cache,
		Concurrency: cfg.Loader.Concurrency,
	})

	srcs, err := ld.LoadAll(c.Context, c.Args().Slice()...)
	if err != nil {
		return fmt.Errorf("%s: %w", loader.Code(err), err)
	}

	if c.Bool("print") {
		for _, src := range srcs {
			if _, err := c.App.Writer.Write(src.Code); err != nil {
				return err
			}
		}
		return nil
	}

	out := make(LoadedModules, 0, len(srcs))
	for _, src := range srcs {
		out = append(out, LoadedModule{
			Specified: src.Specified,
			Kind:      src.Kind.String(),
			Type:      src.Type.String(),
			Size:      len(src.Code),
		})
	}
	return render(c, out)
}

// moduleResponse mirrors the server's GET /api/v1/modules body.
type moduleResponse struct {
	Specified string `json:"specified"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Size      int    `json:"size"`
	Code      string `json:"code"`
}

func moduleLoadRemote(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	out := make(LoadedModules, 0, c.NArg())
	for _, spec := range c.Args().Slice() {
		q := url.Values{"specifier": {spec}}
		if !c.Bool("print") {
			q.Set("source", "false")
		}

		var resp moduleResponse
		if err := client.Get(c.Context, "/api/v1/modules?"+q.Encode(), &resp); err != nil {
			return fmt.Errorf("load %s: %w", spec, err)
		}

		if c.Bool("print") {
			fmt.Fprint(c.App.Writer, resp.Code)
			continue
		}
		out = append(out, LoadedModule{
			Specified: resp.Specified,
			Kind:      resp.Kind,
			Type:      resp.Type,
			Size:      resp.Size,
		})
	}

	if c.Bool("print") {
		return nil
	}
	return render(c, out)
}
