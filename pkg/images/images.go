// Package images serves image generation, edits and variations through
// image bots.
package images

import (
	"context"
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
	"mercator-hq/poebridge/pkg/config"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// Response formats.
const (
	FormatURL     = "url"
	FormatB64JSON = "b64_json"
)

// MaxImages caps n per request.
const MaxImages = 10

const (
	editPrefix      = "Edit this image according to these instructions: "
	maskNote        = " (Note: A mask was provided indicating areas to edit)"
	variationPrompt = "Create a variation of this image, maintaining the same style and subject but with creative differences"
)

// Upload is an image sent with an edit or variation request.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Generator produces images with backend bots.
type Generator struct {
	backend backend.API
	cfg     config.ImagesConfig
	client  *http.Client
	now     func() time.Time
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient sets the client used to download images for b64_json.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.client = c }
}

// WithClock overrides the time source used for "created".
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New returns a generator.
func New(api backend.API, cfg config.ImagesConfig, opts ...Option) *Generator {
	g := &Generator{
		backend: api,
		cfg:     cfg,
		client:  &http.Client{},
		now:     time.Now,
		tracer:  otel.Tracer("mercator-hq/poebridge/images"),
		logger:  slog.Default().With("component", "images"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bot maps an image model name to the bot that draws it. Unmapped names
// are used as bot names.
func (g *Generator) Bot(model string) string {
	if model == "" {
		model = g.cfg.DefaultModel
	}
	if bot, ok := g.cfg.ModelMap[strings.ToLower(model)]; ok {
		return bot
	}
	return model
}

// Generate creates images from a prompt.
func (g *Generator) Generate(ctx context.Context, req *types.ImageGenerationRequest) (*types.ImageResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apierror.Validation("prompt", "prompt is required")
	}
	return g.run(ctx, req, enhancePrompt(req.Prompt, req.Quality, req.Style, req.Size), nil)
}

// Edit redraws image following the prompt. The mask is not sent; the
// prompt notes that one was provided.
func (g *Generator) Edit(ctx context.Context, req *types.ImageGenerationRequest, image Upload, mask *Upload) (*types.ImageResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apierror.Validation("prompt", "prompt is required")
	}
	if len(image.Data) == 0 {
		return nil, apierror.Validation("image", "image is required")
	}
	prompt := editPrefix + req.Prompt
	if mask != nil && len(mask.Data) > 0 {
		prompt += maskNote
	}
	return g.run(ctx, req, prompt, &image)
}

// Variation draws variations of image.
func (g *Generator) Variation(ctx context.Context, req *types.ImageGenerationRequest, image Upload) (*types.ImageResponse, error) {
	if len(image.Data) == 0 {
		return nil, apierror.Validation("image", "image is required")
	}
	return g.run(ctx, req, variationPrompt, &image)
}

func (g *Generator) run(ctx context.Context, req *types.ImageGenerationRequest, prompt string, image *Upload) (*types.ImageResponse, error) {
	n := 1
	if req.N != nil {
		n = *req.N
	}
	if n < 1 || n > MaxImages {
		return nil, apierror.Validation("n", "n must be between 1 and %d", MaxImages)
	}
	format := req.ResponseFormat
	if format == "" {
		format = FormatURL
	}
	if format != FormatURL && format != FormatB64JSON {
		return nil, apierror.Validation("response_format", "response_format must be 'url' or 'b64_json'")
	}

	bot := g.Bot(req.Model)
	ctx, span := g.tracer.Start(ctx, "images.generate",
		trace.WithAttributes(
			attribute.String("bot", bot),
			attribute.Int("n", n),
		),
	)
	defer span.End()

	var atts []backend.Attachment
	if image != nil {
		att, err := g.backend.Upload(ctx, image.Name, image.ContentType, image.Data)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		atts = []backend.Attachment{att}
	}

	resp := &types.ImageResponse{Created: g.now().Unix()}
	for i := 0; i < n; i++ {
		data, err := g.one(ctx, bot, prompt, atts, format)
		if err != nil {
			// Later images are best effort once one has been produced.
			if i == 0 {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			g.logger.Warn("image generation failed", "bot", bot, "index", i, "error", err)
			continue
		}
		resp.Data = append(resp.Data, data)
	}
	return resp, nil
}

// one runs a single generation.
func (g *Generator) one(ctx context.Context, bot, prompt string, atts []backend.Attachment, format string) (types.ImageData, error) {
	msg := backend.ProtocolMessage{Role: backend.RoleUser, Content: prompt, Attachments: atts}
	res, err := backend.Ask(ctx, g.backend, bot, backend.NewQuery([]backend.ProtocolMessage{msg}))
	if err != nil {
		return types.ImageData{}, err
	}

	url := ExtractURL(res)
	if url == "" {
		return types.ImageData{}, &backend.Error{Bot: bot, Message: "response contained no image"}
	}
	if format == FormatURL {
		return types.ImageData{URL: url}, nil
	}
	b64, err := g.download(ctx, url)
	if err != nil {
		return types.ImageData{}, err
	}
	return types.ImageData{B64JSON: b64}, nil
}

// enhancePrompt appends quality, style and size hints.
func enhancePrompt(prompt, quality, style, size string) string {
	if quality == "hd" {
		prompt += ", high quality, detailed, 4k resolution"
	}
	switch style {
	case "vivid":
		prompt += ", vivid colors, dynamic, vibrant"
	case "natural":
		prompt += ", natural lighting, realistic, photographic"
	}
	switch {
	case strings.Contains(size, "1792"), strings.Contains(size, "1024"):
		prompt += ", high resolution"
	case strings.Contains(size, "512"):
		prompt += ", medium resolution"
	}
	return prompt
}
