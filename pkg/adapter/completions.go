package adapter

import (
	"context"
	"strings"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/processing/tokens"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// chatFromCompletion turns a legacy completion request into a single user
// message chat request.
func chatFromCompletion(req *types.CompletionRequest) (*types.ChatCompletionRequest, error) {
	prompt := strings.Join(req.Prompt, "\n\n")
	if strings.TrimSpace(prompt) == "" {
		return nil, apierror.Validation("prompt", "prompt is required")
	}
	return &types.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []types.Message{{Role: RoleUser, Content: types.TextContent(prompt)}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		User:        req.User,
	}, nil
}

// CompleteText runs a legacy text completion.
func (a *Adapter) CompleteText(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	chat, err := chatFromCompletion(req)
	if err != nil {
		return nil, err
	}
	resp, err := a.Complete(ctx, chat)
	if err != nil {
		return nil, err
	}

	text := ""
	if c := resp.Choices[0].Message.Content; c != nil {
		text = *c
	}
	if req.Echo {
		text = strings.Join(req.Prompt, "\n\n") + text
	}
	finish := types.FinishStop

	usage := tokens.NewUsage(a.estimator.EstimateText(strings.Join(req.Prompt, " ")), a.estimator.EstimateText(text))
	return &types.CompletionResponse{
		ID:      ids.New(ids.Completion),
		Object:  types.ObjectTextCompletion,
		Created: resp.Created,
		Model:   req.Model,
		Choices: []types.CompletionChoice{{
			Text:         text,
			Index:        0,
			FinishReason: &finish,
		}},
		Usage: &usage,
	}, nil
}

// TextEvent is one item of a streamed text completion.
type TextEvent struct {
	Chunk *types.CompletionResponse
	Err   error
}

// StreamText runs a streamed legacy completion by re-shaping chat chunks.
func (a *Adapter) StreamText(ctx context.Context, req *types.CompletionRequest) (<-chan TextEvent, error) {
	chat, err := chatFromCompletion(req)
	if err != nil {
		return nil, err
	}
	events, err := a.Stream(ctx, chat)
	if err != nil {
		return nil, err
	}

	id := ids.New(ids.Completion)
	out := make(chan TextEvent)
	go func() {
		defer close(out)
		// Drain on early exit so the multiplexer is never left blocked.
		defer func() {
			for range events {
			}
		}()
		for ev := range events {
			te := TextEvent{Err: ev.Err}
			if ev.Chunk != nil {
				te.Chunk = textChunk(id, req.Model, ev.Chunk)
				if te.Chunk == nil {
					continue
				}
			}
			select {
			case out <- te:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// textChunk re-shapes a chat chunk; role-only chunks are dropped.
func textChunk(id, model string, c *types.ChatCompletionStreamChunk) *types.CompletionResponse {
	choice := c.Choices[0]
	if choice.Delta.Content == "" && choice.FinishReason == nil {
		return nil
	}
	return &types.CompletionResponse{
		ID:      id,
		Object:  types.ObjectTextCompletion,
		Created: c.Created,
		Model:   model,
		Choices: []types.CompletionChoice{{
			Text:         choice.Delta.Content,
			Index:        0,
			FinishReason: choice.FinishReason,
		}},
		Usage: c.Usage,
	}
}
