// Package logger provides structured logging for CatPanel.
//
// It wraps log/slog with a small interface, a process-wide level that can
// be changed at runtime, and a ReplaceAttr hook that scrubs credentials
// from logged values. Module specifiers are the main concern: remote URLs
// may carry userinfo or signed query parameters, and those are masked
// before they reach the output.
//
// Load and request ids travel on the context:
//
//	ctx = logger.WithLoadID(ctx, id)
//	logger.L(ctx).Info("module loaded", "specifier", u.String())
package logger
