// Package tracing sets up OpenTelemetry for the server.
//
// New installs a global tracer provider exporting over OTLP/gRPC when
// tracing is enabled; otherwise the global no-op provider stays in place.
// Packages never hold a tracer from here; they call otel.Tracer with their
// own name, for example "mercator-hq/poebridge/backend".
//
// HTTPMiddleware continues an incoming traceparent, opens a server span per
// request and echoes the trace ID in X-Trace-ID.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//	    insecure: true
package tracing
