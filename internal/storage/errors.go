package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"

	"github.com/boltdb/bolt"
	"github.com/klauspost/compress/zstd"
)

// ErrorKind classifies a storage failure.
type ErrorKind string

const (
	// KindIo is a filesystem or operating system failure.
	KindIo ErrorKind = "io"
	// KindCorruption means the on-disk artifact failed an integrity check.
	KindCorruption ErrorKind = "corruption"
	// KindBackend is any other engine-specific failure.
	KindBackend ErrorKind = "backend"
)

// Sentinels for errors.Is matching on the kind of a *Error.
var (
	ErrIo         = &Error{Kind: KindIo}
	ErrCorruption = &Error{Kind: KindCorruption}
	ErrBackend    = &Error{Kind: KindBackend}

	// ErrEmptyKey is returned (wrapped in a KindBackend error) for "" keys.
	ErrEmptyKey = errors.New("storage: empty key")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage: store closed")
)

// Error is returned by every Store operation.
type Error struct {
	Kind    ErrorKind
	Backend Backend
	Op      string
	Path    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("storage")
	if e.Backend != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Backend))
	}
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	fmt.Fprintf(&b, " (%s)", e.Kind)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the engine error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, ErrCorruption) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is a storage error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// wrapErr converts an engine error into a *Error, classifying it.
// A nil err stays nil; an existing *Error is returned unchanged.
func wrapErr(backend Backend, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{
		Kind:    classify(err),
		Backend: backend,
		Op:      op,
		Path:    path,
		Err:     err,
	}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, bolt.ErrInvalid),
		errors.Is(err, bolt.ErrChecksum),
		errors.Is(err, bolt.ErrVersionMismatch),
		errors.Is(err, zstd.ErrMagicMismatch),
		errors.Is(err, zstd.ErrBlockTooSmall),
		errors.Is(err, zstd.ErrCRCMismatch),
		errors.Is(err, errCodec):
		return KindCorruption
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "checksum") ||
		strings.Contains(msg, "corrupt") {
		return KindCorruption
	}

	var pathErr *fs.PathError
	var errno syscall.Errno
	switch {
	case errors.As(err, &pathErr),
		errors.As(err, &errno),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, fs.ErrNotExist):
		return KindIo
	}

	return KindBackend
}
