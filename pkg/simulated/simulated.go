// Package simulated implements embeddings, moderations and token counting
// on top of chat bots.
//
// None of these are real: embedding vectors are produced by asking a model
// for numbers, moderation verdicts come from a prompted classifier, and
// token counts are word-count estimates. Every result is wrapped in
// Simulated so that callers cannot mistake it for ground truth.
package simulated

import (
	"context"
	"log/slog"
	"strings"

	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/config"
	"mercator-hq/poebridge/pkg/processing/tokens"
)

// Header is set to "true" on every response produced by this package.
const Header = "X-Poebridge-Simulated"

// Simulated marks a value as approximate.
type Simulated[T any] struct {
	Value T
}

// wrap returns v marked as simulated.
func wrap[T any](v T) Simulated[T] {
	return Simulated[T]{Value: v}
}

// Engine serves the simulated endpoints.
type Engine struct {
	backend     backend.Querier
	embeddings  config.EmbeddingsConfig
	moderations config.ModerationsConfig
	embedTokens *tokens.WordEstimator
	chatTokens  *tokens.WordEstimator
	logger      *slog.Logger
}

// New returns an engine that queries q.
func New(q backend.Querier, embeddings config.EmbeddingsConfig, moderations config.ModerationsConfig) *Engine {
	return &Engine{
		backend:     q,
		embeddings:  embeddings,
		moderations: moderations,
		embedTokens: tokens.NewWordEstimator(tokens.EmbeddingTokensPerWord),
		chatTokens:  tokens.NewWordEstimator(tokens.ChatTokensPerWord),
		logger:      slog.Default().With("component", "simulated"),
	}
}

// ask sends a single user prompt and returns the response text.
func (e *Engine) ask(ctx context.Context, bot, prompt string) (string, error) {
	req := backend.NewQuery([]backend.ProtocolMessage{{Role: backend.RoleUser, Content: prompt}})
	res, err := backend.Ask(ctx, e.backend, bot, req)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
