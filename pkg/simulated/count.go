package simulated

import (
	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// ObjectTokenCount is the object type of token count responses.
const ObjectTokenCount = "token_count"

// CountTokens estimates the token count of messages or raw input.
func (e *Engine) CountTokens(req *types.TokenCountRequest) (Simulated[*types.TokenCountResponse], error) {
	var n int
	switch {
	case len(req.Messages) > 0:
		n = e.chatTokens.EstimateMessages(req.Messages)
	case len(req.Input) > 0:
		n = e.chatTokens.EstimateAll(req.Input)
	default:
		return Simulated[*types.TokenCountResponse]{}, apierror.Validation("messages", "messages or input is required")
	}
	return wrap(&types.TokenCountResponse{
		Object:      ObjectTokenCount,
		Model:       req.Model,
		TotalTokens: n,
	}), nil
}
