package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Handle wraps next so that only requests with the local key reach it.
func (g *Guard) Handle(next http.Handler, reject ErrorWriter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			slog.Warn("rejected request",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			reject(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), keyIDKey, g.keyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const keyIDKey contextKey = "api_key_id"

// KeyID returns the fingerprint of the key that authenticated the request.
func KeyID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(keyIDKey).(string)
	return id, ok
}
