package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/simulated"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantType    string
		wantCode    string
		wantMessage string
	}{
		{
			name:       "validation",
			err:        apierror.Validation("messages", "messages must not be empty"),
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeInvalidRequest,
			wantCode:   types.CodeInvalidValue,
		},
		{
			name:       "not found wrapped",
			err:        errors.Join(errors.New("lookup"), apierror.NotFound("file", "file-x")),
			wantStatus: http.StatusNotFound,
			wantType:   types.ErrorTypeInvalidRequest,
			wantCode:   "file_not_found",
		},
		{
			name:       "auth",
			err:        &apierror.Error{Kind: apierror.KindAuth, Message: "no key", Code: types.CodeMissingAPIKey},
			wantStatus: http.StatusUnauthorized,
			wantType:   types.ErrorTypeInvalidRequest,
			wantCode:   types.CodeMissingAPIKey,
		},
		{
			name:        "backend error is redacted",
			err:         &backend.Error{Bot: "gpt-4o", StatusCode: 500, Message: "secret upstream trace"},
			wantStatus:  http.StatusBadGateway,
			wantType:    types.ErrorTypeBadGateway,
			wantCode:    types.CodeBackendError,
			wantMessage: BackendErrorMessage,
		},
		{
			name:       "attachment fetch client fault",
			err:        apierror.AttachmentFetch("http://x", true, errors.New("404")),
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeInvalidRequest,
			wantCode:   "attachment_fetch_failed",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   types.ErrorTypeServerError,
			wantCode:   types.CodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := HandleError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error.Type != tt.wantType || body.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want type %q code %q", body.Error, tt.wantType, tt.wantCode)
			}
			if tt.wantMessage != "" && body.Error.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Error.Message, tt.wantMessage)
			}
			if strings.Contains(body.Error.Message, "secret") {
				t.Errorf("message leaks upstream detail: %q", body.Error.Message)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/files/file-x", nil)

	WriteError(w, r, apierror.NotFound("file", "file-x"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Error.Message != "No file found with id 'file-x'." {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestWriteSimulated(t *testing.T) {
	w := httptest.NewRecorder()
	result := simulated.Simulated[*types.TokenCountResponse]{Value: &types.TokenCountResponse{Object: "token_count", TotalTokens: 3}}

	if err := WriteSimulated(w, result); err != nil {
		t.Fatalf("WriteSimulated() error = %v", err)
	}
	if got := w.Header().Get(simulated.Header); got != "true" {
		t.Errorf("%s = %q, want true", simulated.Header, got)
	}
	if !strings.Contains(w.Body.String(), `"total_tokens":3`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

type event struct {
	value string
	err   error
}

func unpackEvent(e event) (interface{}, error) {
	return map[string]string{"v": e.value}, e.err
}

func TestPump(t *testing.T) {
	tests := []struct {
		name    string
		events  []event
		want    string
		wantErr bool
	}{
		{
			name:   "chunks then done",
			events: []event{{value: "a"}, {value: "b"}},
			want:   "data: {\"v\":\"a\"}\n\ndata: {\"v\":\"b\"}\n\ndata: [DONE]\n\n",
		},
		{
			name:    "error stops the stream",
			events:  []event{{value: "a"}, {err: &backend.Error{Bot: "x", Message: "overloaded"}}, {value: "late"}},
			want:    "data: {\"v\":\"a\"}\n\ndata: {\"error\":{\"message\":\"" + BackendErrorMessage + "\",\"type\":\"bad_gateway\",\"code\":\"backend_error\"}}\n\ndata: [DONE]\n\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan event, len(tt.events))
			for _, e := range tt.events {
				ch <- e
			}
			close(ch)

			rec := httptest.NewRecorder()
			err := Pump(NewSSEWriter(rec), ch, unpackEvent)
			if (err != nil) != tt.wantErr {
				t.Errorf("Pump() error = %v, wantErr %v", err, tt.wantErr)
			}
			if rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}
