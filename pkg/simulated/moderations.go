package simulated

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// Categories are the moderation categories reported in every result.
var Categories = []string{
	"hate",
	"hate/threatening",
	"harassment",
	"harassment/threatening",
	"self-harm",
	"self-harm/intent",
	"self-harm/instructions",
	"sexual",
	"sexual/minors",
	"violence",
	"violence/graphic",
}

const (
	flaggedScore = 0.1
	clearScore   = 0.01
)

// verdictFields maps the keys the classifier answers with to categories.
var verdictFields = map[string]string{
	"hate":       "hate",
	"harassment": "harassment",
	"self_harm":  "self-harm",
	"sexual":     "sexual",
	"violence":   "violence",
}

// Moderate classifies each input with a prompted model. A malformed verdict
// yields an unflagged result rather than an error.
func (e *Engine) Moderate(ctx context.Context, req *types.ModerationRequest) (Simulated[*types.ModerationResponse], error) {
	if len(req.Input) == 0 {
		return Simulated[*types.ModerationResponse]{}, apierror.Validation("input", "input is required")
	}

	results := make([]types.ModerationResult, 0, len(req.Input))
	for _, text := range req.Input {
		reply, err := e.ask(ctx, e.moderations.BackendModel, moderationPrompt(text))
		if err != nil {
			return Simulated[*types.ModerationResponse]{}, err
		}
		results = append(results, parseVerdict(reply))
	}

	model := req.Model
	if model == "" {
		model = e.moderations.DefaultModel
	}
	return wrap(&types.ModerationResponse{
		ID:      ids.New(ids.Moderation),
		Model:   model,
		Results: results,
	}), nil
}

func moderationPrompt(text string) string {
	return fmt.Sprintf("Analyze this text for harmful content. Respond with JSON containing:\n"+
		"- flagged: boolean (true if content is harmful)\n"+
		"- hate: boolean\n"+
		"- harassment: boolean\n"+
		"- self_harm: boolean\n"+
		"- sexual: boolean\n"+
		"- violence: boolean\n\n"+
		"Text to analyze: %q\n\n"+
		"Respond with only the JSON, no other text.", text)
}

// parseVerdict maps a classifier reply onto the fixed category schema.
func parseVerdict(reply string) types.ModerationResult {
	res := types.ModerationResult{
		Categories:     make(map[string]bool, len(Categories)),
		CategoryScores: make(map[string]float64, len(Categories)),
	}
	for _, c := range Categories {
		res.Categories[c] = false
		res.CategoryScores[c] = clearScore
	}

	body := stripFences(reply)
	if !gjson.Valid(body) || !gjson.Parse(body).IsObject() {
		return res
	}
	verdict := gjson.Parse(body)
	res.Flagged = verdict.Get("flagged").Bool()
	for key, category := range verdictFields {
		if verdict.Get(key).Bool() {
			res.Categories[category] = true
			res.CategoryScores[category] = flaggedScore
		}
	}
	return res
}
