package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		want     int
		wantType string
	}{
		{"auth", &Error{Kind: KindAuth}, http.StatusUnauthorized, "invalid_request_error"},
		{"validation", Validation("tools", "duplicate"), http.StatusBadRequest, "invalid_request_error"},
		{"not found", NotFound("file", "file-1"), http.StatusNotFound, "invalid_request_error"},
		{"too large", PayloadTooLarge("messages", 10, 5), http.StatusRequestEntityTooLarge, "invalid_request_error"},
		{"media type", UnsupportedMediaType("video/mp4"), http.StatusUnsupportedMediaType, "invalid_request_error"},
		{"fetch client", AttachmentFetch("http://x", true, nil), http.StatusBadRequest, "invalid_request_error"},
		{"fetch upstream", AttachmentFetch("http://x", false, nil), http.StatusBadGateway, "bad_gateway"},
		{"backend", &Error{Kind: KindBackend}, http.StatusBadGateway, "bad_gateway"},
		{"capability", UnsupportedCapability("m", "image_url"), http.StatusBadRequest, "invalid_request_error"},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
			if got := tt.err.WireType(); got != tt.wantType {
				t.Errorf("WireType() = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestIsAndKindOf(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("resolving part 2: %w", AttachmentFetch("http://x", false, cause))

	if !Is(wrapped, KindAttachmentFetch) {
		t.Error("Is(wrapped, KindAttachmentFetch) = false, want true")
	}
	if Is(wrapped, KindNotFound) {
		t.Error("Is(wrapped, KindNotFound) = true, want false")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is(wrapped, cause) = false, want true through Unwrap")
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %v, want internal", got)
	}
	if got := KindOf(wrapped).String(); got != "attachment_fetch" {
		t.Errorf("KindOf(wrapped).String() = %q", got)
	}
}
