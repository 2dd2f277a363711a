package loader

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BoxCatTeam/CatPanelBackend/internal/script/modcache"
)

// Kind is the source location family of a specifier.
type Kind int

const (
	KindLocal Kind = iota + 1
	KindRemote
	KindEmbedded
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindEmbedded:
		return "embedded"
	default:
		return "unknown"
	}
}

// Specifier is a resolved module URL classified by scheme.
//
// Path depends on Kind: a filesystem path for KindLocal, the cache key for
// KindRemote, and the resource table path (no leading slash) for
// KindEmbedded.
type Specifier struct {
	Kind Kind
	URL  *url.URL
	Path string
}

// Scheme returns the lower-cased URL scheme.
func (s Specifier) Scheme() string {
	return strings.ToLower(s.URL.Scheme)
}

// ParseSpecifier classifies u. Scheme matching ignores case.
func ParseSpecifier(u *url.URL) (Specifier, error) {
	if u == nil {
		return Specifier{}, ErrMalformedSpecifier.with("", nil)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return Specifier{}, ErrMalformedSpecifier.with(u.String(), nil)
		}
		return Specifier{Kind: KindLocal, URL: u, Path: filePath(p)}, nil
	case "http", "https":
		return Specifier{Kind: KindRemote, URL: u, Path: modcache.KeyFor(u)}, nil
	case "embed":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return Specifier{Kind: KindEmbedded, URL: u, Path: strings.TrimLeft(p, "/")}, nil
	default:
		return Specifier{}, ErrUnsupportedProtocol.with(u.String(), nil)
	}
}

// Resolve turns specifier into an absolute URL.
//
// Absolute URLs are returned as parsed. References starting with "./",
// "../" or "/" are resolved against referrer using RFC 3986 reference
// resolution. Bare names such as "lodash" are rejected.
func Resolve(specifier, referrer string) (*url.URL, error) {
	if specifier == "" {
		return nil, ErrMalformedSpecifier.with(specifier, nil)
	}

	if isRelative(specifier) {
		base, err := url.Parse(referrer)
		if err != nil || !base.IsAbs() {
			return nil, ErrMalformedSpecifier.with(specifier, err)
		}
		ref, err := url.Parse(specifier)
		if err != nil {
			return nil, ErrMalformedSpecifier.with(specifier, err)
		}
		return base.ResolveReference(ref), nil
	}

	u, err := url.Parse(specifier)
	if err != nil {
		return nil, ErrMalformedSpecifier.with(specifier, err)
	}
	if !u.IsAbs() {
		return nil, ErrMalformedSpecifier.with(specifier, nil)
	}
	// Remove dot segments so "https://h/a/../b.js" and "https://h/b.js"
	// share one cache key.
	return u.ResolveReference(&url.URL{}), nil
}

// filePath converts a file URL path to a native path. "/C:/x.ts" becomes
// "C:\x.ts" on Windows.
func filePath(p string) string {
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

func isRelative(s string) bool {
	return strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "/")
}
