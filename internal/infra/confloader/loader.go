package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "CP_"

// envNestSep separates nesting levels in environment variable names.
const envNestSep = "__"

type fileSource struct {
	path     string
	optional bool
}

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	files     []fileSource
	loaded    bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile adds a YAML file that must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		if path != "" {
			l.files = append(l.files, fileSource{path: path})
		}
	}
}

// WithOptionalFile adds a YAML file that is skipped when absent.
func WithOptionalFile(path string) Option {
	return func(l *Loader) {
		if path != "" {
			l.files = append(l.files, fileSource{path: path, optional: true})
		}
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies the registered files, then the environment, and unmarshals
// the result over target. Fields of target that no source sets keep their
// current values, so target doubles as the defaults layer.
func (l *Loader) Load(target any) error {
	for _, f := range l.files {
		if f.optional {
			if _, err := os.Stat(f.path); errors.Is(err, fs.ErrNotExist) {
				continue
			}
		}
		if err := l.LoadFile(f.path); err != nil {
			return err
		}
	}

	if err := l.LoadEnv(); err != nil {
		return err
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.loaded = true
	return nil
}

// LoadFile merges a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges environment variables carrying the prefix.
// CP_HTTP__BIND=0.0.0.0:8686 sets http.bind.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, envNestSep, ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges a nested map, used for runtime overrides and tests.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// LoadStruct merges the koanf-tagged fields of v.
func (l *Loader) LoadStruct(v any) error {
	m, err := structToMap(v)
	if err != nil {
		return err
	}
	return l.LoadMap(m)
}

// Unmarshal decodes the merged configuration into target.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Persist writes the merged configuration to path as YAML, replacing the
// file atomically.
func (l *Loader) Persist(path string) error {
	data, err := l.k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persist config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	return nil
}

// Get returns a raw value by dotted key.
func (l *Loader) Get(key string) any { return l.k.Get(key) }

// GetString returns a string value by dotted key.
func (l *Loader) GetString(key string) string { return l.k.String(key) }

// IsLoaded reports whether Load has succeeded.
func (l *Loader) IsLoaded() bool { return l.loaded }
