// Package apierror defines the error kinds surfaced to API clients.
//
// Every failure that reaches an HTTP handler is classified into one Kind,
// which fixes the HTTP status and the OpenAI error "type". Components return
// *Error values (or wrap them); the proxy layer converts them to the wire
// envelope with errors.As.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error.
type Kind int

const (
	// KindInternal is an unexpected failure inside poebridge (500).
	KindInternal Kind = iota
	// KindAuth is a missing or wrong local credential (401).
	KindAuth
	// KindValidation is a malformed request (400).
	KindValidation
	// KindNotFound is an unknown file, assistant, thread, message or run id (404).
	KindNotFound
	// KindPayloadTooLarge is an upload or attachment over the configured limit (413).
	KindPayloadTooLarge
	// KindUnsupportedMediaType is an upload whose MIME type is not allowed (415).
	KindUnsupportedMediaType
	// KindAttachmentFetch is a failed remote attachment fetch (400 or 502).
	KindAttachmentFetch
	// KindBackend is an upstream failure, reported with a redacted message (502).
	KindBackend
	// KindUnsupportedCapability is non-text content sent to a text-only model (400).
	KindUnsupportedCapability
)

var kindNames = map[Kind]string{
	KindInternal:              "internal",
	KindAuth:                  "auth",
	KindValidation:            "validation",
	KindNotFound:              "not_found",
	KindPayloadTooLarge:       "payload_too_large",
	KindUnsupportedMediaType:  "unsupported_media_type",
	KindAttachmentFetch:       "attachment_fetch",
	KindBackend:               "backend",
	KindUnsupportedCapability: "unsupported_capability",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified API error.
type Error struct {
	// Kind fixes the HTTP status and wire type.
	Kind Kind

	// Message is safe to show to clients.
	Message string

	// Param names the offending request field, if any.
	Param string

	// Code is a machine-readable code such as "invalid_api_key".
	Code string

	// Status overrides the status implied by Kind when non-zero.
	// Only KindAttachmentFetch uses it (400 vs 502).
	Status int

	// Cause is the underlying error, kept for logs and errors.Is.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for the error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation, KindUnsupportedCapability:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindAttachmentFetch, KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WireType returns the OpenAI error "type" field for the error.
func (e *Error) WireType() string {
	switch e.Kind {
	case KindAuth, KindValidation, KindNotFound, KindPayloadTooLarge,
		KindUnsupportedMediaType, KindUnsupportedCapability:
		return "invalid_request_error"
	case KindAttachmentFetch:
		if e.HTTPStatus() < 500 {
			return "invalid_request_error"
		}
		return "bad_gateway"
	case KindBackend:
		return "bad_gateway"
	default:
		return "server_error"
	}
}

// Is reports whether err carries an *Error of kind k anywhere in its chain.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Validation returns a KindValidation error about param.
func Validation(param, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Param: param, Code: "invalid_value"}
}

// NotFound returns a KindNotFound error for an object of the given type.
func NotFound(object, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("No %s found with id '%s'.", object, id),
		Code:    object + "_not_found",
	}
}

// PayloadTooLarge returns a KindPayloadTooLarge error.
func PayloadTooLarge(param string, size, limit int64) *Error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Message: fmt.Sprintf("Payload of %d bytes exceeds the limit of %d bytes.", size, limit),
		Param:   param,
		Code:    "payload_too_large",
	}
}

// UnsupportedMediaType returns a KindUnsupportedMediaType error.
func UnsupportedMediaType(mimeType string) *Error {
	return &Error{
		Kind:    KindUnsupportedMediaType,
		Message: fmt.Sprintf("File type '%s' not supported.", mimeType),
		Param:   "file",
		Code:    "unsupported_file_type",
	}
}

// AttachmentFetch returns a KindAttachmentFetch error. clientFault selects
// 400 (bad URL, 4xx answer) over 502 (network failure, timeout, 5xx answer).
func AttachmentFetch(url string, clientFault bool, cause error) *Error {
	status := http.StatusBadGateway
	if clientFault {
		status = http.StatusBadRequest
	}
	return &Error{
		Kind:    KindAttachmentFetch,
		Message: fmt.Sprintf("Failed to fetch attachment from %s.", url),
		Param:   "messages",
		Code:    "attachment_fetch_failed",
		Status:  status,
		Cause:   cause,
	}
}

// UnsupportedCapability returns a KindUnsupportedCapability error.
func UnsupportedCapability(model, partType string) *Error {
	return &Error{
		Kind:    KindUnsupportedCapability,
		Message: fmt.Sprintf("Model '%s' does not accept '%s' content parts; send text only.", model, partType),
		Param:   "messages",
		Code:    "unsupported_content",
	}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "An internal error occurred. Please try again later.", Code: "internal_error", Cause: cause}
}
