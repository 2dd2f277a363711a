package loader

import (
	"path"
	"strings"
)

// SourceKind is the media type of a module, derived from its path.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceJavaScript
	SourceMjs
	SourceCjs
	SourceJSX
	SourceTypeScript
	SourceMts
	SourceCts
	SourceDts
	SourceDmts
	SourceDcts
	SourceTSX
	SourceJSON
)

var sourceKindNames = map[SourceKind]string{
	SourceUnknown:    "unknown",
	SourceJavaScript: "js",
	SourceMjs:        "mjs",
	SourceCjs:        "cjs",
	SourceJSX:        "jsx",
	SourceTypeScript: "ts",
	SourceMts:        "mts",
	SourceCts:        "cts",
	SourceDts:        "d.ts",
	SourceDmts:       "d.mts",
	SourceDcts:       "d.cts",
	SourceTSX:        "tsx",
	SourceJSON:       "json",
}

func (k SourceKind) String() string {
	if s, ok := sourceKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// NeedsTransform reports whether sources of this kind must be transformed
// before execution.
func (k SourceKind) NeedsTransform() bool {
	switch k {
	case SourceJSX, SourceTypeScript, SourceMts, SourceCts,
		SourceDts, SourceDmts, SourceDcts, SourceTSX:
		return true
	}
	return false
}

// IsDeclaration reports whether k is a type declaration file.
func (k SourceKind) IsDeclaration() bool {
	return k == SourceDts || k == SourceDmts || k == SourceDcts
}

// ModuleType returns the module type handed to the execution engine.
func (k SourceKind) ModuleType() ModuleType {
	if k == SourceJSON {
		return ModuleJSON
	}
	return ModuleJavaScript
}

// ModuleType distinguishes executable modules from JSON data modules.
type ModuleType int

const (
	ModuleJavaScript ModuleType = iota
	ModuleJSON
)

func (t ModuleType) String() string {
	if t == ModuleJSON {
		return "json"
	}
	return "javascript"
}

// ClassifyPath maps a slash-separated path to its source kind using the
// final extension, case-insensitively. ".d.ts" style declaration suffixes
// are recognised before the plain TypeScript extensions.
func ClassifyPath(p string) SourceKind {
	base := strings.ToLower(path.Base(p))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	decl := strings.HasSuffix(stem, ".d")

	switch ext {
	case ".js":
		return SourceJavaScript
	case ".mjs":
		return SourceMjs
	case ".cjs":
		return SourceCjs
	case ".jsx":
		return SourceJSX
	case ".ts":
		if decl {
			return SourceDts
		}
		return SourceTypeScript
	case ".mts":
		if decl {
			return SourceDmts
		}
		return SourceMts
	case ".cts":
		if decl {
			return SourceDcts
		}
		return SourceCts
	case ".tsx":
		return SourceTSX
	case ".json":
		return SourceJSON
	default:
		return SourceUnknown
	}
}
