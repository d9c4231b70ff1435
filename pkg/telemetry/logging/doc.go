// Package logging configures log/slog for the server.
//
// New builds a JSON or text handler and wraps it so that:
//   - records logged with a context carry request_id, and trace_id/span_id
//     when a span is active
//   - bearer tokens, sk- style keys and the configured secrets are masked in
//     attribute values
//
// # Usage
//
//	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging,
//	    cfg.Backend.APIKey, cfg.Security.LocalAPIKey))
//
//	slog.InfoContext(logging.WithRequestID(ctx, "req-123"), "request completed",
//	    "authorization", "Bearer sk-local-abc",  // logged as "Bear***"
//	)
package logging
