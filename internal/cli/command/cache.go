package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/output"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/modcache"
)

// CacheCommand returns the cache subcommand group. It works on the cache
// files directly; stop the server first when using a backend that takes
// an exclusive lock.
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and edit the remote module cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stat",
				Usage:  "Show backend, artifact path and entry count",
				Action: cacheStat,
			},
			{
				Name:   "path",
				Usage:  "Print the cache artifact path",
				Action: cachePath,
			},
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List entries with their sizes",
				Flags:   []cli.Flag{prefixFlag()},
				Action:  cacheList,
			},
			{
				Name:   "keys",
				Usage:  "List cached keys",
				Flags:  []cli.Flag{prefixFlag()},
				Action: cacheKeys,
			},
			{
				Name:      "get",
				Usage:     "Write a cached value to stdout",
				ArgsUsage: "KEY",
				Action:    cacheGet,
			},
			{
				Name:      "put",
				Usage:     "Store FILE (or - for stdin) under KEY",
				ArgsUsage: "KEY FILE",
				Action:    cachePut,
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Usage:     "Remove one or more keys",
				ArgsUsage: "KEY...",
				Action:    cacheRemove,
			},
		},
	}
}

func prefixFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "prefix",
		Aliases: []string{"p"},
		Usage:   "Only keys starting with this prefix",
	}
}

// withCache opens the cache for the duration of fn.
func withCache(c *cli.Context, fn func(ctx context.Context, cache *modcache.Cache) error) error {
	cache, _, err := openCache(c)
	if err != nil {
		return err
	}
	defer cache.Close()
	return fn(c.Context, cache)
}

// CacheStat is the output of cache stat.
type CacheStat struct {
	Backend string `json:"backend" yaml:"backend"`
	Path    string `json:"path" yaml:"path"`
	Entries int    `json:"entries" yaml:"entries"`
}

// Table implements output.Tabular.
func (s CacheStat) Table() *output.Table {
	t := output.NewTable("BACKEND", "PATH", "ENTRIES")
	t.AddRow(s.Backend, s.Path, strconv.Itoa(s.Entries))
	return t
}

func cacheStat(c *cli.Context) error {
	return withCache(c, func(_ context.Context, cache *modcache.Cache) error {
		n, err := cache.Len()
		if err != nil {
			return err
		}
		return render(c, CacheStat{
			Backend: string(cache.Backend()),
			Path:    cache.Path(),
			Entries: n,
		})
	})
}

func cachePath(c *cli.Context) error {
	return withCache(c, func(_ context.Context, cache *modcache.Cache) error {
		_, err := fmt.Fprintln(c.App.Writer, cache.Path())
		return err
	})
}

// CacheEntry is one row of cache ls.
type CacheEntry struct {
	Key  string `json:"key" yaml:"key"`
	Size int    `json:"size" yaml:"size"`
}

// CacheEntries is the output of cache ls.
type CacheEntries []CacheEntry

// Table implements output.Tabular.
func (e CacheEntries) Table() *output.Table {
	t := output.NewTable("KEY", "SIZE")
	for _, entry := range e {
		t.AddRow(entry.Key, output.FormatBytes(int64(entry.Size)))
	}
	return t
}

func cacheList(c *cli.Context) error {
	prefix := c.String("prefix")
	return withCache(c, func(ctx context.Context, cache *modcache.Cache) error {
		entries, err := cache.Entries(ctx)
		if err != nil {
			return err
		}

		out := CacheEntries{}
		for _, e := range entries {
			if strings.HasPrefix(e.Key, prefix) {
				out = append(out, CacheEntry{Key: e.Key, Size: len(e.Value)})
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return render(c, out)
	})
}

func cacheKeys(c *cli.Context) error {
	prefix := c.String("prefix")
	return withCache(c, func(ctx context.Context, cache *modcache.Cache) error {
		keys, err := cache.Keys(ctx)
		if err != nil {
			return err
		}
		return render(c, filterKeys(keys, prefix))
	})
}

func filterKeys(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func cacheGet(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return cli.Exit("KEY is required", 1)
	}
	return withCache(c, func(ctx context.Context, cache *modcache.Cache) error {
		v, ok, err := cache.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
		}
		_, err = c.App.Writer.Write(v)
		return err
	})
}

func cachePut(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: cache put KEY FILE", 1)
	}
	key, file := c.Args().Get(0), c.Args().Get(1)

	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	return withCache(c, func(ctx context.Context, cache *modcache.Cache) error {
		if err := cache.Put(ctx, key, data); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "stored %s (%s)\n", key, output.FormatBytes(int64(len(data))))
		return nil
	})
}

func cacheRemove(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one KEY is required", 1)
	}
	return withCache(c, func(ctx context.Context, cache *modcache.Cache) error {
		for _, key := range c.Args().Slice() {
			if err := cache.Remove(ctx, key); err != nil {
				return fmt.Errorf("remove %s: %w", key, err)
			}
			fmt.Fprintf(c.App.Writer, "removed %s\n", key)
		}
		return nil
	})
}
