// Package transpile strips TypeScript and JSX syntax from module sources
// using esbuild's transform API. Output is ES module JavaScript.
package transpile

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/BoxCatTeam/CatPanelBackend/internal/script/loader"
)

// Config tunes the transform.
type Config struct {
	// InlineSourceMap appends a base64 source map comment to the output.
	InlineSourceMap bool
	// JSXFactory and JSXFragment override the classic JSX runtime names.
	JSXFactory  string
	JSXFragment string
}

// ESBuild implements loader.Transformer.
type ESBuild struct {
	cfg Config
}

// New creates a transformer.
func New(cfg Config) *ESBuild {
	return &ESBuild{cfg: cfg}
}

// TransformError carries esbuild diagnostics.
type TransformError struct {
	Specifier string
	Messages  []api.Message
}

func (e *TransformError) Error() string {
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
		} else {
			parts = append(parts, m.Text)
		}
	}
	return fmt.Sprintf("transform %s: %s", e.Specifier, strings.Join(parts, "; "))
}

// Transform converts code of the given kind to JavaScript. Declaration
// files carry no runtime code and become empty modules.
func (t *ESBuild) Transform(ctx context.Context, specifier string, code []byte, kind loader.SourceKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind.IsDeclaration() {
		return []byte{}, nil
	}

	l, ok := esbuildLoader(kind)
	if !ok {
		return nil, fmt.Errorf("transform %s: kind %s needs no transform", specifier, kind)
	}

	opts := api.TransformOptions{
		Loader:      l,
		Format:      api.FormatESModule,
		Target:      api.ESNext,
		Sourcefile:  specifier,
		JSXFactory:  t.cfg.JSXFactory,
		JSXFragment: t.cfg.JSXFragment,
	}
	if t.cfg.InlineSourceMap {
		opts.Sourcemap = api.SourceMapInline
	}

	res := api.Transform(string(code), opts)
	if len(res.Errors) > 0 {
		return nil, &TransformError{Specifier: specifier, Messages: res.Errors}
	}
	return res.Code, nil
}

func esbuildLoader(kind loader.SourceKind) (api.Loader, bool) {
	switch kind {
	case loader.SourceTypeScript, loader.SourceMts, loader.SourceCts:
		return api.LoaderTS, true
	case loader.SourceTSX:
		return api.LoaderTSX, true
	case loader.SourceJSX:
		return api.LoaderJSX, true
	default:
		return api.LoaderNone, false
	}
}
