package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/files"
	"mercator-hq/poebridge/pkg/proxy/types"
)

const (
	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"

	// multipartMemory is how much of a multipart body is buffered in memory
	// before parts spill to temporary files.
	multipartMemory = 32 << 20

	// chatUploadPurpose is the purpose recorded for files sent with a chat request.
	chatUploadPurpose = "assistants"
)

// FileRegistrar stores files uploaded alongside a request.
type FileRegistrar interface {
	Upload(ctx context.Context, filename, contentType, purpose string, data []byte) (*files.File, error)
}

// ReadBody reads the whole request body. A limit of zero or less disables
// the size check.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	reader := io.Reader(r.Body)
	if limit > 0 {
		reader = io.LimitReader(r.Body, limit+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &apierror.Error{
			Kind:    apierror.KindValidation,
			Message: "Failed to read request body.",
			Param:   "body",
			Code:    types.CodeInvalidValue,
			Cause:   err,
		}
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, apierror.PayloadTooLarge("body", int64(len(body)), limit)
	}
	return body, nil
}

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, limit int64, v interface{}) error {
	body, err := ReadBody(r, limit)
	if err != nil {
		return err
	}
	return unmarshalBody(body, v)
}

func unmarshalBody(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &apierror.Error{
			Kind:    apierror.KindValidation,
			Message: fmt.Sprintf("Invalid JSON: %v", err),
			Param:   "body",
			Code:    types.CodeInvalidJSON,
			Cause:   err,
		}
	}
	return nil
}

// MediaType returns the lowercased media type of the request body, or ""
// when the request has no Content-Type.
func MediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// UnsupportedContentType is returned for bodies that are neither JSON nor
// multipart form data.
func UnsupportedContentType(mediaType string) *apierror.Error {
	return &apierror.Error{
		Kind:    apierror.KindUnsupportedMediaType,
		Message: fmt.Sprintf("Unsupported Content-Type '%s'. Use application/json or multipart/form-data.", mediaType),
		Code:    types.CodeUnsupportedContentType,
	}
}

// ParseChatRequest decodes a chat completion request. JSON bodies are read
// up to jsonLimit bytes. Multipart bodies, capped at uploadLimit, carry the
// JSON in a "request" field and any number of "files" parts; each file is
// registered and appended as a file part to the last user message.
func ParseChatRequest(r *http.Request, jsonLimit, uploadLimit int64, registrar FileRegistrar) (*types.ChatCompletionRequest, error) {
	var req types.ChatCompletionRequest

	switch mt := MediaType(r); mt {
	case "", "application/json":
		if err := DecodeJSON(r, jsonLimit, &req); err != nil {
			return nil, err
		}
	case "multipart/form-data":
		form, err := ParseMultipart(r, uploadLimit)
		if err != nil {
			return nil, err
		}
		raw := firstValue(form, "request")
		if raw == "" {
			return nil, &apierror.Error{
				Kind:    apierror.KindValidation,
				Message: "Missing 'request' form field.",
				Param:   "request",
				Code:    types.CodeMissingField,
			}
		}
		if !gjson.Valid(raw) {
			return nil, &apierror.Error{
				Kind:    apierror.KindValidation,
				Message: "The 'request' form field is not valid JSON.",
				Param:   "request",
				Code:    types.CodeInvalidJSON,
			}
		}
		patched, err := attachUploads(r.Context(), raw, form.File["files"], registrar)
		if err != nil {
			return nil, err
		}
		if err := unmarshalBody([]byte(patched), &req); err != nil {
			return nil, err
		}
	default:
		return nil, UnsupportedContentType(mt)
	}

	return &req, nil
}

// ParseMultipart parses a multipart body capped at limit bytes.
func ParseMultipart(r *http.Request, limit int64) (*multipart.Form, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apierror.PayloadTooLarge("body", r.ContentLength, tooLarge.Limit)
		}
		return nil, &apierror.Error{
			Kind:    apierror.KindValidation,
			Message: "Invalid multipart form body.",
			Param:   "body",
			Code:    types.CodeInvalidValue,
			Cause:   err,
		}
	}
	return r.MultipartForm, nil
}

// ReadFormFile returns the bytes of the first file uploaded under field, or
// nil when there is none.
func ReadFormFile(form *multipart.Form, field string) (*multipart.FileHeader, []byte, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, nil, nil
	}
	data, err := readPart(headers[0])
	if err != nil {
		return nil, nil, err
	}
	return headers[0], data, nil
}

// FormValue returns the first value of a multipart text field.
func FormValue(form *multipart.Form, field string) string {
	return firstValue(form, field)
}

func firstValue(form *multipart.Form, field string) string {
	if vs := form.Value[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("open part %q: %w", fh.Filename, err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("read part %q: %w", fh.Filename, err))
	}
	return data, nil
}

// attachUploads registers uploads and rewrites raw so that the last user
// message lists them as file parts after its existing content.
func attachUploads(ctx context.Context, raw string, uploads []*multipart.FileHeader, registrar FileRegistrar) (string, error) {
	if len(uploads) == 0 {
		return raw, nil
	}

	last := -1
	gjson.Get(raw, "messages").ForEach(func(key, msg gjson.Result) bool {
		if msg.Get("role").String() == "user" {
			last = int(key.Int())
		}
		return true
	})
	if last < 0 {
		return "", apierror.Validation("messages", "Uploaded files require at least one user message.")
	}

	path := fmt.Sprintf("messages.%d.content", last)
	var err error
	switch content := gjson.Get(raw, path); {
	case content.Type == gjson.String:
		raw, err = sjson.Set(raw, path, []types.ContentPart{{Type: types.PartText, Text: content.String()}})
	case !content.IsArray():
		raw, err = sjson.Set(raw, path, []types.ContentPart{})
	}
	if err != nil {
		return "", apierror.Internal(err)
	}

	for _, fh := range uploads {
		data, err := readPart(fh)
		if err != nil {
			return "", err
		}
		f, err := registrar.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), chatUploadPurpose, data)
		if err != nil {
			return "", err
		}
		part := types.ContentPart{
			Type: types.PartFile,
			File: &types.FilePart{FileID: f.ID, Filename: f.Filename},
		}
		if raw, err = sjson.Set(raw, path+".-1", part); err != nil {
			return "", apierror.Internal(err)
		}
	}
	return raw, nil
}
