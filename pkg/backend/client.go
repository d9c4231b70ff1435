package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"mercator-hq/poebridge/pkg/config"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Querier issues bot queries. Client implements it; tests substitute fakes.
type Querier interface {
	Query(ctx context.Context, bot string, req *QueryRequest) (Stream, error)
}

// Uploader stores attachment bytes where the backend can read them.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (Attachment, error)
}

// API is everything the adapter layers need from the backend.
type API interface {
	Querier
	Uploader
}

// Stream yields the events of one bot response. Next returns io.EOF after
// the last event. Close releases the connection and may be called at any time.
type Stream interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Observer receives one observation per finished backend call.
type Observer interface {
	ObserveBackend(bot, outcome string, duration time.Duration)
}

// Client talks to the Poe bot-query API. It uses one pooled HTTP transport
// for every call and never retries: a failure surfaces immediately.
type Client struct {
	baseURL   string
	uploadURL string
	apiKey    string
	client    *http.Client
	observer  Observer
	tracer    trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithObserver records call outcomes and latencies.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a backend client with connection pooling.
func NewClient(cfg config.BackendConfig, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/") + "/",
		uploadURL: cfg.UploadURL,
		apiKey:    cfg.APIKey,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		tracer: otel.Tracer("mercator-hq/poebridge/backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query sends a bot query and returns its event stream once the backend has
// accepted the request. Cancelling ctx aborts the underlying HTTP request.
func (c *Client) Query(ctx context.Context, bot string, req *QueryRequest) (Stream, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "backend.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("backend.bot", bot),
			attribute.Int("backend.messages", len(req.Query)),
			attribute.Int("backend.tools", len(req.Tools)),
		),
	)

	body, err := json.Marshal(req)
	if err != nil {
		c.finish(span, bot, start, err)
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bot, bytes.NewReader(body))
	if err != nil {
		c.finish(span, bot, start, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	slog.DebugContext(ctx, "sending query to backend",
		"bot", bot,
		"messages", len(req.Query),
		"tools", len(req.Tools),
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		berr := &Error{Bot: bot, Message: "request failed", Cause: err}
		c.finish(span, bot, start, berr)
		return nil, berr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		berr := &Error{
			Bot:        bot,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(errorBody)),
		}
		c.finish(span, bot, start, berr)
		return nil, berr
	}

	return &eventStream{
		bot:    bot,
		body:   resp.Body,
		reader: newEventReader(resp.Body),
		done: func(err error) {
			c.finish(span, bot, start, err)
		},
	}, nil
}

// Upload posts bytes to the attachment upload endpoint and returns the
// attachment the backend will read.
func (c *Client) Upload(ctx context.Context, name, contentType string, data []byte) (Attachment, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "backend.upload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("file.content_type", contentType),
			attribute.Int("file.size", len(data)),
		),
	)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err == nil {
		_, err = part.Write(data)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		c.finish(span, "upload", start, err)
		return Attachment{}, fmt.Errorf("failed to build upload body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		c.finish(span, "upload", start, err)
		return Attachment{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		berr := &Error{Bot: "upload", Message: "upload failed", Cause: err}
		c.finish(span, "upload", start, berr)
		return Attachment{}, berr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		berr := &Error{Bot: "upload", Message: "failed to read upload response", Cause: err}
		c.finish(span, "upload", start, berr)
		return Attachment{}, berr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		berr := &Error{Bot: "upload", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		c.finish(span, "upload", start, berr)
		return Attachment{}, berr
	}

	result := gjson.ParseBytes(respBody)
	url := result.Get("attachment_url").String()
	if url == "" {
		berr := &Error{Bot: "upload", Message: "upload response has no attachment_url"}
		c.finish(span, "upload", start, berr)
		return Attachment{}, berr
	}
	mimeType := result.Get("mime_type").String()
	if mimeType == "" {
		mimeType = contentType
	}

	c.finish(span, "upload", start, nil)
	return Attachment{URL: url, ContentType: mimeType, Name: name}, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) finish(span trace.Span, bot string, start time.Time, err error) {
	outcome := Outcome(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("backend.outcome", outcome))
	span.End()

	if c.observer != nil {
		c.observer.ObserveBackend(bot, outcome, time.Since(start))
	}
}

// eventStream decodes one SSE response body into events.
type eventStream struct {
	bot      string
	body     io.ReadCloser
	reader   *eventReader
	done     func(error)
	finished bool
}

// Next returns the next event. After an error event, a done event or the
// end of the body it returns io.EOF.
func (s *eventStream) Next(ctx context.Context) (Event, error) {
	if s.finished {
		return Event{}, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, s.fail(&Error{Bot: s.bot, Message: "stream cancelled", Cause: err})
		}

		name, data, err := s.reader.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.end(nil)
				return Event{}, io.EOF
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return Event{}, s.fail(&Error{Bot: s.bot, Message: "failed to read stream", Cause: err})
		}

		ev, ok := decodeEvent(name, data)
		if !ok {
			slog.DebugContext(ctx, "skipping unknown backend event", "bot", s.bot, "event", name)
			continue
		}

		switch ev.Kind {
		case EventError:
			return Event{}, s.fail(&Error{
				Bot:        s.bot,
				Message:    ev.Text,
				ErrorType:  ev.ErrorType,
				AllowRetry: ev.AllowRetry,
			})
		case EventDone:
			s.end(nil)
		}
		return ev, nil
	}
}

// Close releases the response body.
func (s *eventStream) Close() error {
	if !s.finished {
		s.end(&Error{Bot: s.bot, Message: "stream closed early", Cause: context.Canceled})
	}
	return s.body.Close()
}

func (s *eventStream) fail(err error) error {
	s.end(err)
	return err
}

func (s *eventStream) end(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.done(err)
}

// decodeEvent turns a named SSE event into an Event. Unknown event names
// are reported as not ok.
func decodeEvent(name string, data []byte) (Event, bool) {
	ev := Event{Kind: EventKind(name), Raw: json.RawMessage(data)}
	payload := gjson.ParseBytes(data)

	switch ev.Kind {
	case EventText, EventReplace:
		ev.Text = payload.Get("text").String()
	case EventError:
		ev.Text = payload.Get("text").String()
		ev.AllowRetry = payload.Get("allow_retry").Bool()
		ev.ErrorType = payload.Get("error_type").String()
		if ev.Text == "" {
			ev.Text = "the backend reported an error"
		}
	case EventJSON:
		ev.ToolCalls = decodeToolCalls(payload)
	case EventFile:
		ev.Attachment = &Attachment{
			URL:         payload.Get("url").String(),
			ContentType: payload.Get("content_type").String(),
			Name:        payload.Get("name").String(),
		}
	case EventDone, EventMeta:
	default:
		return Event{}, false
	}
	return ev, true
}

// decodeToolCalls reads native tool call fragments. The backend forwards
// them in the OpenAI chunk shape; a bare tool_calls list is accepted too.
func decodeToolCalls(payload gjson.Result) []ToolCallDelta {
	calls := payload.Get("choices.0.delta.tool_calls")
	if !calls.Exists() {
		calls = payload.Get("tool_calls")
	}
	if !calls.IsArray() {
		return nil
	}

	var out []ToolCallDelta
	for i, call := range calls.Array() {
		index := i
		if idx := call.Get("index"); idx.Exists() {
			index = int(idx.Int())
		}
		out = append(out, ToolCallDelta{
			Index:     index,
			ID:        call.Get("id").String(),
			Name:      call.Get("function.name").String(),
			Arguments: call.Get("function.arguments").String(),
		})
	}
	return out
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
