package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/tracer"
)

// Fetcher retrieves remote module bytes.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// ResourceTable serves modules bundled into the binary.
type ResourceTable interface {
	Lookup(path string) ([]byte, bool)
}

// Transformer turns a transform-requiring source into executable JavaScript.
type Transformer interface {
	Transform(ctx context.Context, specifier string, code []byte, kind SourceKind) ([]byte, error)
}

// Cache is the remote source cache. *modcache.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Executor runs a loaded module. The script engine implements it.
type Executor interface {
	Execute(ctx context.Context, src *ModuleSource) error
}

// ModuleSource is a loaded module ready for the execution engine.
type ModuleSource struct {
	Specified string     // URL as requested
	Found     string     // URL the code was loaded from
	Kind      SourceKind // media type derived from the path
	Type      ModuleType
	Code      []byte
}

// Options wires a Loader to its collaborators. Any of them may be nil;
// loads that need a missing collaborator fail.
type Options struct {
	Fetcher     Fetcher
	Resources   ResourceTable
	Transformer Transformer
	Cache       Cache
	Metrics     *metric.Registry

	// Concurrency bounds LoadAll. Zero means 8.
	Concurrency int
}

// Loader resolves and loads modules from local files, remote URLs (through
// the cache) and the embedded resource table. It holds no mutable state and
// is safe for concurrent use.
type Loader struct {
	fetcher     Fetcher
	resources   ResourceTable
	transformer Transformer
	cache       Cache
	metrics     *metric.Registry
	concurrency int
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Loader{
		fetcher:     opts.Fetcher,
		resources:   opts.Resources,
		transformer: opts.Transformer,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		concurrency: opts.Concurrency,
	}
}

// Resolve resolves specifier against referrer. See the package-level Resolve.
func (l *Loader) Resolve(specifier, referrer string) (*url.URL, error) {
	return Resolve(specifier, referrer)
}

// Load reads the module at u, classifies it and transforms it when its
// kind requires it.
func (l *Loader) Load(ctx context.Context, u *url.URL) (src *ModuleSource, err error) {
	ctx = logger.WithLoadID(ctx, newLoadID())
	log := logger.L(ctx)

	specified := ""
	if u != nil {
		specified = u.String()
	}

	ctx, span := tracer.Start(ctx, "module.load", attribute.String("module.specifier", logger.RedactString(specified)))
	defer func() { tracer.End(span, err) }()

	spec, err := ParseSpecifier(u)
	if err != nil {
		l.countLoad("other", err)
		log.Warn("module rejected", "specifier", u, "error", err)
		return nil, err
	}
	scheme := spec.Scheme()
	span.SetAttributes(attribute.String("module.scheme", scheme))
	defer func() { l.countLoad(scheme, err) }()

	code, err := l.read(ctx, spec)
	if err != nil {
		log.Warn("module load failed", "specifier", u, "error", err)
		return nil, err
	}

	kind := ClassifyPath(classifyPath(spec))
	if kind == SourceUnknown {
		return nil, ErrUnknownSourceKind.with(specified, fmt.Errorf("extension %q", path.Ext(classifyPath(spec))))
	}
	span.SetAttributes(attribute.String("module.kind", kind.String()))

	if kind.NeedsTransform() {
		code, err = l.transform(ctx, specified, code, kind)
		if err != nil {
			log.Warn("module transform failed", "specifier", u, "kind", kind.String(), "error", err)
			return nil, err
		}
	}

	log.Debug("module loaded", "specifier", u, "kind", kind.String(), "bytes", len(code))
	return &ModuleSource{
		Specified: specified,
		Found:     specified,
		Kind:      kind,
		Type:      kind.ModuleType(),
		Code:      code,
	}, nil
}

// LoadAll resolves each specifier as an absolute URL and loads them
// concurrently. Results keep the order of specifiers. The first failure
// cancels the remaining loads.
func (l *Loader) LoadAll(ctx context.Context, specifiers ...string) ([]*ModuleSource, error) {
	out := make([]*ModuleSource, len(specifiers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, s := range specifiers {
		g.Go(func() error {
			u, err := Resolve(s, "")
			if err != nil {
				return err
			}
			src, err := l.Load(ctx, u)
			if err != nil {
				return err
			}
			out[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) read(ctx context.Context, spec Specifier) ([]byte, error) {
	switch spec.Kind {
	case KindLocal:
		return readLocal(spec)
	case KindRemote:
		return l.readRemote(ctx, spec)
	case KindEmbedded:
		if l.resources == nil {
			return nil, ErrNotFound.with(spec.URL.String(), errors.New("no resource table"))
		}
		code, ok := l.resources.Lookup(spec.Path)
		if !ok {
			return nil, ErrNotFound.with(spec.URL.String(), nil)
		}
		return code, nil
	default:
		return nil, ErrUnsupportedProtocol.with(spec.URL.String(), nil)
	}
}

func readLocal(spec Specifier) ([]byte, error) {
	// Directories and unreadable files are reported like missing ones.
	code, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, ErrNotFound.with(spec.URL.String(), err)
	}
	return code, nil
}

// readRemote serves from the cache, fetching and storing on a miss.
// Concurrent misses for one key may each fetch; the last write wins.
func (l *Loader) readRemote(ctx context.Context, spec Specifier) ([]byte, error) {
	log := logger.L(ctx)
	key := spec.Path

	if l.cache != nil {
		code, ok, err := l.cache.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("loader: cache get %s: %w", key, err)
		}
		if ok {
			log.Debug("module cache hit", "key", key)
			return code, nil
		}
	}

	if l.fetcher == nil {
		return nil, ErrNetworkFailure.with(spec.URL.String(), errors.New("no fetcher configured"))
	}

	log.Debug("module cache miss, fetching", "key", key, "specifier", spec.URL)
	start := time.Now()
	code, err := l.fetcher.Fetch(ctx, spec.URL)
	if l.metrics != nil {
		l.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, ErrNetworkFailure.with(spec.URL.String(), err)
	}

	if l.cache != nil {
		if err := l.cache.Put(ctx, key, code); err != nil {
			return nil, fmt.Errorf("loader: cache put %s: %w", key, err)
		}
	}
	return code, nil
}

func (l *Loader) transform(ctx context.Context, specifier string, code []byte, kind SourceKind) ([]byte, error) {
	var err error
	defer func() {
		if l.metrics != nil {
			l.metrics.Transforms.WithLabelValues(kind.String(), metric.Result(err)).Inc()
		}
	}()

	if l.transformer == nil {
		err = ErrSourceTransform.with(specifier, errors.New("no transformer configured"))
		return nil, err
	}
	out, terr := l.transformer.Transform(ctx, specifier, code, kind)
	if terr != nil {
		err = ErrSourceTransform.with(specifier, terr)
		return nil, err
	}
	return out, nil
}

func (l *Loader) countLoad(scheme string, err error) {
	if l.metrics != nil {
		l.metrics.ModuleLoads.WithLabelValues(scheme, metric.Result(err)).Inc()
	}
}

// classifyPath returns the slash path whose extension decides the kind.
func classifyPath(spec Specifier) string {
	if spec.Kind == KindLocal {
		return filepath.ToSlash(spec.Path)
	}
	return spec.Path
}

func newLoadID() string {
	return ulid.Make().String()
}
