// Package adapter implements OpenAI chat completions on top of the backend.
//
// A request is validated, resolved against the capability table, given its
// tool protocol and attachments, sent to the backend and turned back into
// an OpenAI response or chunk stream. Usage figures are word-count
// estimates.
package adapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/poebridge/pkg/attachments"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/processing/tokens"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/stream"
	"mercator-hq/poebridge/pkg/tools"
)

// AttachmentResolver uploads a request's non-text parts.
type AttachmentResolver interface {
	ToBackend(ctx context.Context, model capability.Capability, parts []types.ContentPart) ([]backend.Attachment, error)
}

// Observer receives adapter metrics.
type Observer interface {
	stream.Observer
	ObserveToolCalls(mode string, n int)
}

// Adapter serves chat and text completions.
type Adapter struct {
	backend   backend.Querier
	resolver  AttachmentResolver
	table     *capability.Table
	estimator *tokens.WordEstimator
	lookahead int
	observer  Observer
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

// WithToolLookahead sets the streaming tool filter window in bytes.
func WithToolLookahead(n int) Option {
	return func(a *Adapter) { a.lookahead = n }
}

// WithClock overrides the time source used for "created" timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New returns an adapter.
func New(q backend.Querier, resolver AttachmentResolver, table *capability.Table, opts ...Option) *Adapter {
	a := &Adapter{
		backend:   q,
		resolver:  resolver,
		table:     table,
		estimator: tokens.NewWordEstimator(tokens.ChatTokensPerWord),
		lookahead: tools.DefaultLookahead,
		now:       time.Now,
		logger:    slog.Default().With("component", "adapter"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// prepared is a request ready to send.
type prepared struct {
	model capability.Capability
	tools tools.Outbound
	query *backend.QueryRequest
}

func (a *Adapter) prepare(ctx context.Context, req *types.ChatCompletionRequest) (*prepared, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	a.logIgnored(req)

	model := a.table.Lookup(req.Model)
	out := tools.PrepareOutbound(req.Tools, req.ToolChoice, model.NativeTools)

	var atts []backend.Attachment
	if parts := nonTextParts(req.Messages); len(parts) > 0 {
		if a.resolver == nil {
			if err := attachments.Check(model, parts); err != nil {
				return nil, err
			}
		} else {
			var err error
			atts, err = a.resolver.ToBackend(ctx, model, parts)
			if err != nil {
				return nil, err
			}
		}
	}

	query := backend.NewQuery(toProtocol(buildTurns(req, out), atts))
	query.Temperature = req.Temperature
	query.StopSequences = req.Stop
	query.Tools = out.Native

	return &prepared{model: model, tools: out, query: query}, nil
}

func (a *Adapter) logIgnored(req *types.ChatCompletionRequest) {
	if req.N != nil || req.TopP != nil || req.PresencePenalty != nil ||
		req.FrequencyPenalty != nil || req.Seed != nil || len(req.LogitBias) > 0 {
		a.logger.Debug("ignoring sampling parameters the backend does not support",
			"model", req.Model,
			"n", req.N != nil,
			"top_p", req.TopP != nil,
			"presence_penalty", req.PresencePenalty != nil,
			"frequency_penalty", req.FrequencyPenalty != nil,
			"seed", req.Seed != nil,
			"logit_bias", len(req.LogitBias) > 0,
		)
	}
}

// Complete runs a blocking chat completion.
func (a *Adapter) Complete(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	p, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := backend.Ask(ctx, a.backend, p.model.BackendName, p.query)
	if err != nil {
		return nil, err
	}

	raw := res.Text
	for _, att := range res.Attachments {
		raw += attachments.Markdown(att)
	}

	text := raw
	reasoningTokens := 0
	if p.model.Reasoning {
		reasoningTokens = tokens.EstimateReasoningTokens(raw)
		text = tokens.RemoveThinkingNoise(raw)
	}

	calls, visible := tools.ParseInbound(text, res.ToolCalls, p.tools.Mode == tools.ModeFallback)
	a.observeToolCalls(p.tools.Mode, len(calls))

	msg := types.ResponseMessage{Role: RoleAssistant, ToolCalls: calls}
	finish := types.FinishStop
	if len(calls) > 0 {
		finish = types.FinishToolCalls
	}
	if len(calls) == 0 || strings.TrimSpace(visible) != "" {
		msg.Content = &visible
	}

	usage := tokens.NewUsage(a.estimator.EstimateMessages(req.Messages), a.estimator.EstimateText(visible))
	if p.model.Reasoning {
		usage.CompletionTokensDetails = &types.CompletionTokensDetails{ReasoningTokens: reasoningTokens}
		usage.PromptTokensDetails = &types.PromptTokensDetails{}
	}

	return &types.ChatCompletionResponse{
		ID:      ids.New(ids.ChatCompletion),
		Object:  types.ObjectChatCompletion,
		Created: a.now().Unix(),
		Model:   req.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finish,
		}},
		Usage: usage,
	}, nil
}

// Stream starts a streaming chat completion. Errors before the backend
// answers are returned directly; later failures arrive as the channel's
// final event.
func (a *Adapter) Stream(ctx context.Context, req *types.ChatCompletionRequest) (<-chan stream.Event, error) {
	p, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	src, err := a.backend.Query(ctx, p.model.BackendName, p.query)
	if err != nil {
		return nil, err
	}

	var filter *tools.Filter
	if p.tools.Mode == tools.ModeFallback {
		filter = tools.NewFilter(a.lookahead)
	}

	includeUsage := req.StreamOptions != nil && req.StreamOptions.IncludeUsage
	promptTokens := a.estimator.EstimateMessages(req.Messages)
	mode := p.tools.Mode

	opts := stream.Options{
		ID:      ids.New(ids.ChatCompletion),
		Model:   req.Model,
		Created: a.now().Unix(),
		Filter:  filter,
		Logger:  a.logger,
		Usage: func(s stream.Summary) *types.Usage {
			a.observeToolCalls(mode, s.ToolCalls)
			if !includeUsage {
				return nil
			}
			u := tokens.NewUsage(promptTokens, a.estimator.EstimateText(s.Text))
			if p.model.Reasoning {
				u.CompletionTokensDetails = &types.CompletionTokensDetails{
					ReasoningTokens: tokens.EstimateReasoningTokens(s.Text),
				}
				u.PromptTokensDetails = &types.PromptTokensDetails{}
			}
			return &u
		},
	}
	if a.observer != nil {
		opts.Observer = a.observer
	}
	return stream.Run(ctx, src, opts), nil
}

func (a *Adapter) observeToolCalls(mode tools.Mode, n int) {
	if a.observer != nil && n > 0 {
		a.observer.ObserveToolCalls(string(mode), n)
	}
}
