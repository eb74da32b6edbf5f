// Package observability sets up OpenTelemetry tracing over OTLP/HTTP and
// offers small helpers for starting spans and recording errors on them.
// When no endpoint is configured the global no-op provider stays in place.
package observability
