// Package middleware provides the HTTP middleware wrapped around the API
// dispatcher.
//
// # Middleware Chain
//
// The server assembles the chain outermost first:
//
//	handler = Recovery(RequestID(Logging(CORS(Timeout(dispatcher)))))
//
// RequestID runs before Logging so every log line for a request carries the
// same request_id. Recovery sits outside everything so a panic anywhere still
// yields an OpenAI-style 500 envelope.
//
// # Streaming
//
// Wrapping writers implement http.Flusher and Unwrap so server-sent event
// responses reach the client chunk by chunk. TimeoutMiddleware only attaches a
// context deadline; it never writes to the response itself, which keeps it
// safe for streams that are already under way.
//
// # Request ID
//
// A caller-supplied X-Request-ID is reused when it is reasonably short,
// otherwise a UUID is generated:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
package middleware
