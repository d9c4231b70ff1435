package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// BackendErrorMessage replaces upstream error details in client responses.
const BackendErrorMessage = "The upstream model service returned an error."

// HandleError converts any error to an HTTP status and an OpenAI-compatible
// error envelope. Backend failures are reported with a fixed message so
// upstream details never reach clients; unknown errors become 500.
//
// Example usage:
//
//	if err != nil {
//	    status, body := HandleError(err)
//	    WriteJSON(w, status, body)
//	    return
//	}
func HandleError(err error) (int, *types.ErrorResponse) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Kind == apierror.KindBackend {
			msg = BackendErrorMessage
		}
		return apiErr.HTTPStatus(), types.NewErrorResponse(msg, apiErr.WireType(), apiErr.Param, apiErr.Code)
	}

	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		return http.StatusBadGateway, types.NewBadGatewayError(BackendErrorMessage)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, types.NewErrorResponse(
			"The request timed out.",
			types.ErrorTypeGatewayTimeout,
			"",
			"timeout",
		)
	}

	return http.StatusInternalServerError, types.NewServerError(
		"An internal error occurred. Please try again later.",
	)
}

// WriteError logs err and writes its envelope. Client errors are logged at
// debug, everything else at error with the full cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := HandleError(err)

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	if werr := WriteJSON(w, status, body); werr != nil {
		slog.Debug("failed to write error response", "error", werr)
	}
}
