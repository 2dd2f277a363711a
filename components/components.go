// Package components bundles the panel's component scripts into the
// binary. They are served to the module loader under the embed: scheme,
// e.g. embed:///php/info.ts.
package components

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed *.ts php
var files embed.FS

// Table is a read-only resource table over an fs.FS.
type Table struct {
	fsys fs.FS
}

// Bundled returns the table of scripts compiled into the binary.
func Bundled() *Table {
	return &Table{fsys: files}
}

// New returns a table over fsys, for tests and alternate bundles.
func New(fsys fs.FS) *Table {
	return &Table{fsys: fsys}
}

// Lookup returns the contents of the resource at p. p is slash-separated
// and relative; a leading slash is ignored.
func (t *Table) Lookup(p string) ([]byte, bool) {
	p = path.Clean(strings.TrimLeft(p, "/"))
	if !fs.ValidPath(p) || p == "." {
		return nil, false
	}
	data, err := fs.ReadFile(t.fsys, p)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Paths lists every resource path in the table.
func (t *Table) Paths() ([]string, error) {
	var out []string
	err := fs.WalkDir(t.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}
