// Package tracer wires OpenTelemetry tracing for CatPanel.
//
// Tracing is opt-in. Setup installs an OTLP/HTTP exporter only when an
// endpoint is configured; otherwise the global no-op provider stays in
// place and Start returns non-recording spans.
package tracer
