package loader

import (
	"errors"
	"fmt"
)

// Error is a module resolution or load failure with a stable code.
// errors.Is matches on Code, so a returned *Error matches the package
// sentinel of the same code regardless of specifier or cause.
type Error struct {
	Code      string // e.g. "CP-LOAD-4040"
	Message   string
	Specifier string
	Cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Specifier != "" {
		msg += ": " + e.Specifier
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// with returns a copy of e bound to a specifier and cause.
func (e *Error) with(specifier string, cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Specifier: specifier, Cause: cause}
}

var (
	// ErrMalformedSpecifier: the specifier is neither an absolute URL nor a
	// relative reference that can be resolved against the referrer.
	ErrMalformedSpecifier = &Error{Code: "CP-RSLV-4000", Message: "malformed module specifier"}

	// ErrUnsupportedProtocol: the URL scheme is not file, http, https or embed.
	ErrUnsupportedProtocol = &Error{Code: "CP-LOAD-4001", Message: "unsupported protocol"}

	// ErrNotFound: no local file or embedded resource at the path.
	ErrNotFound = &Error{Code: "CP-LOAD-4040", Message: "module not found"}

	// ErrUnknownSourceKind: the path extension maps to no source kind.
	ErrUnknownSourceKind = &Error{Code: "CP-LOAD-4150", Message: "unknown source kind"}

	// ErrSourceTransform: the transformer rejected the source.
	ErrSourceTransform = &Error{Code: "CP-LOAD-4220", Message: "source transform failed"}

	// ErrNetworkFailure: fetching a remote module failed.
	ErrNetworkFailure = &Error{Code: "CP-LOAD-5020", Message: "network failure"}
)

// Code returns the code of the first *Error in err's chain, or "".
func Code(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
