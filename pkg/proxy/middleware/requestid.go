package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/telemetry/logging"
)

// maxClientRequestID bounds a caller-supplied request ID so it cannot
// flood the logs.
const maxClientRequestID = 128

// RequestIDMiddleware tags every request with an ID, reusing the caller's
// X-Request-ID when present. The ID is stored in the context and echoed in
// the response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(proxy.RequestIDHeader)
		if requestID == "" || len(requestID) > maxClientRequestID {
			requestID = uuid.NewString()
		}

		w.Header().Set(proxy.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
