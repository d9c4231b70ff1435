// Package attachments turns multimodal content parts into backend
// attachments and backend file events into visible text.
package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/files"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// FileSource resolves registered file ids.
type FileSource interface {
	Get(ctx context.Context, id string) (*files.File, error)
}

// Codec resolves content parts to uploaded backend attachments.
type Codec struct {
	uploader     backend.Uploader
	files        FileSource
	client       *http.Client
	limit        int64
	fetchTimeout time.Duration
	tracer       trace.Tracer
	logger       *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithHTTPClient sets the client used for remote URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(codec *Codec) { codec.client = c }
}

// New returns a codec. limit caps the decoded size of every attachment.
func New(uploader backend.Uploader, source FileSource, limit int64, fetchTimeout time.Duration, opts ...Option) *Codec {
	c := &Codec{
		uploader:     uploader,
		files:        source,
		client:       &http.Client{},
		limit:        limit,
		fetchTimeout: fetchTimeout,
		tracer:       otel.Tracer("mercator-hq/poebridge/attachments"),
		logger:       slog.Default().With("component", "attachments"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolved is one attachment's bytes before upload.
type resolved struct {
	name     string
	mimeType string
	data     []byte
}

// Check rejects non-text parts for models that cannot take them. It does
// no I/O.
func Check(model capability.Capability, parts []types.ContentPart) error {
	if model.ImageCapable {
		return nil
	}
	for _, p := range parts {
		if p.Type != types.PartText {
			return apierror.UnsupportedCapability(model.ID, p.Type)
		}
	}
	return nil
}

// ToBackend resolves and uploads every non-text part, in order. Parts are
// rejected up front when the model cannot take them, so nothing is fetched
// or uploaded for a request that will fail.
func (c *Codec) ToBackend(ctx context.Context, model capability.Capability, parts []types.ContentPart) ([]backend.Attachment, error) {
	var nonText []types.ContentPart
	for _, p := range parts {
		if p.Type != types.PartText {
			nonText = append(nonText, p)
		}
	}
	if len(nonText) == 0 {
		return nil, nil
	}
	if err := Check(model, nonText); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "attachments.resolve",
		trace.WithAttributes(attribute.Int("attachments.count", len(nonText))),
	)
	defer span.End()

	// Resolve everything before uploading anything.
	items := make([]resolved, 0, len(nonText))
	for i, p := range nonText {
		r, err := c.resolve(ctx, i, p)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve failed")
			return nil, err
		}
		items = append(items, r)
	}

	out := make([]backend.Attachment, 0, len(items))
	for _, r := range items {
		att, err := c.uploader.Upload(ctx, r.name, r.mimeType, r.data)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload failed")
			return nil, err
		}
		out = append(out, att)
	}

	c.logger.Debug("attachments uploaded", "count", len(out))
	return out, nil
}

func (c *Codec) resolve(ctx context.Context, i int, p types.ContentPart) (resolved, error) {
	switch p.Type {
	case types.PartImageURL:
		if p.ImageURL == nil || p.ImageURL.URL == "" {
			return resolved{}, apierror.Validation("messages", "image_url part is missing a url")
		}
		u := p.ImageURL.URL
		switch {
		case strings.HasPrefix(u, "data:"):
			return c.decodeDataURL(u, fmt.Sprintf("image_%d", i))
		case ids.HasPrefix(u, ids.File):
			return c.lookup(ctx, u)
		default:
			return c.fetch(ctx, u)
		}

	case types.PartFile, types.PartInputFile:
		if p.File == nil {
			return resolved{}, apierror.Validation("messages", "file part is missing its file object")
		}
		switch {
		case p.File.FileID != "":
			return c.lookup(ctx, p.File.FileID)
		case p.File.FileData != "":
			name := p.File.Filename
			if name == "" {
				name = fmt.Sprintf("file_%d", i)
			}
			if strings.HasPrefix(p.File.FileData, "data:") {
				return c.decodeDataURL(p.File.FileData, name)
			}
			return c.decodeBase64(p.File.FileData, name, "")
		default:
			return resolved{}, apierror.Validation("messages", "file part needs file_id or file_data")
		}

	default:
		return resolved{}, apierror.Validation("messages", "unsupported content part type '%s'", p.Type)
	}
}

func (c *Codec) lookup(ctx context.Context, id string) (resolved, error) {
	if c.files == nil {
		return resolved{}, apierror.NotFound("file", id)
	}
	f, err := c.files.Get(ctx, id)
	if err != nil {
		return resolved{}, err
	}
	return resolved{name: f.Filename, mimeType: f.MimeType, data: f.Data}, nil
}

// decodeDataURL handles data:<mime>[;base64],<payload>.
func (c *Codec) decodeDataURL(u, name string) (resolved, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(u, "data:"), ",")
	if !ok {
		return resolved{}, apierror.Validation("messages", "malformed data URL")
	}
	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return resolved{}, apierror.Validation("messages", "data URL must be base64 encoded")
	}
	return c.decodeBase64(payload, name, mimeType)
}

// decodeBase64 checks the size implied by the encoded length before
// decoding anything.
func (c *Codec) decodeBase64(payload, name, mimeType string) (resolved, error) {
	payload = strings.TrimSpace(payload)
	if size := decodedLen(payload); c.limit > 0 && size > c.limit {
		return resolved{}, apierror.PayloadTooLarge("messages", size, c.limit)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return resolved{}, apierror.Validation("messages", "attachment is not valid base64")
		}
	}
	if mimeType == "" {
		mimeType = files.DetectType(name, "", data)
	}
	return resolved{name: withExtension(name, mimeType), mimeType: mimeType, data: data}, nil
}

func decodedLen(payload string) int64 {
	n := int64(len(payload)) * 3 / 4
	for i := len(payload) - 1; i >= 0 && payload[i] == '='; i-- {
		n--
	}
	return n
}

func withExtension(name, mimeType string) string {
	if strings.Contains(name, ".") {
		return name
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		return name + "." + strings.TrimPrefix(sub, "x-")
	}
	return name
}

// Markdown renders a backend file attachment as visible text.
func Markdown(att backend.Attachment) string {
	name := att.Name
	if name == "" {
		name = "Image"
	}
	return fmt.Sprintf("\n![%s](%s)\n", name, att.URL)
}
