package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure reported by, or while talking to, the backend. The
// message may contain upstream details and is never shown to API clients.
type Error struct {
	// Bot is the bot that was queried.
	Bot string

	// StatusCode is the HTTP status returned by the backend, or 0 when the
	// failure happened in the event stream or the transport.
	StatusCode int

	// Message is the upstream error text.
	Message string

	// ErrorType is the backend's error classification, when it sent one.
	ErrorType string

	// AllowRetry reports whether the backend marked the failure as retryable.
	// Retries are left to callers.
	AllowRetry bool

	// Cause is the underlying error (transport failures).
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: status %d: %s", e.Bot, e.StatusCode, msg)
	}
	return fmt.Sprintf("backend %s: %s", e.Bot, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsAuth reports whether the backend rejected the configured credential.
func (e *Error) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Outcome classifies an error for metrics: "ok", "cancelled", "auth",
// "status_<code>", "stream_error" or "transport".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var be *Error
	if !errors.As(err, &be) {
		return "transport"
	}
	switch {
	case be.Cause != nil && isContextErr(be.Cause):
		return "cancelled"
	case be.IsAuth():
		return "auth"
	case be.StatusCode != 0:
		return fmt.Sprintf("status_%d", be.StatusCode)
	case be.Cause == nil:
		return "stream_error"
	default:
		return "transport"
	}
}
