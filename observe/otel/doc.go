// Package otel provides deferdrop observers for OpenTelemetry.
// Tracer records a span per disposal and per worker lifecycle event; Nop
// discards everything.
package otel
