package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request with a context deadline. The handler
// runs on the calling goroutine and owns the response; backend calls observe
// the deadline and surface context.DeadlineExceeded, which the error mapper
// turns into a 504. A timeout of zero or less disables the deadline.
//
// Example usage:
//
//	handler = TimeoutMiddleware(10 * time.Minute)(handler)
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
