// Package telemetry groups the observability packages of poebridge.
//
//   - logging: slog setup with secret redaction
//   - metrics: Prometheus collectors for requests, backend calls and stores
//   - tracing: OpenTelemetry tracer provider exported over OTLP gRPC
//   - health: liveness and readiness probes
package telemetry
