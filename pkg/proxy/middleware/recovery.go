package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// RecoveryMiddleware turns a handler panic into a 500 error envelope. The
// stack is logged; the client only sees a generic message.
//
// http.ErrAbortHandler is re-raised so the server can abort the connection
// the way it expects.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			_ = proxy.WriteJSON(w, http.StatusInternalServerError,
				types.NewServerError("An internal error occurred. Please try again later."))
		}()

		next.ServeHTTP(w, r)
	})
}
