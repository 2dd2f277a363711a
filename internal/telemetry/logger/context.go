package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "catpanel.logger"
	loadIDKey    contextKey = "catpanel.load_id"
	requestIDKey contextKey = "catpanel.request_id"
)

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithLoadID tags ctx with the identifier of a module load. Nested fetches
// and transforms started from that load share the same id.
func WithLoadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, loadIDKey, id)
}

// LoadIDFromContext returns the load id stored in ctx, if any.
func LoadIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(loadIDKey).(string)
	return id
}

// WithRequestID tags ctx with an HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// L returns the context logger enriched with the load and request ids
// carried by ctx.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := LoadIDFromContext(ctx); id != "" {
		l = l.With("load_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}
