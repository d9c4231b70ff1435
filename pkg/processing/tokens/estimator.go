package tokens

import (
	"strings"

	"mercator-hq/poebridge/pkg/proxy/types"
)

// Factors applied to word counts.
const (
	ChatTokensPerWord      = 0.75
	EmbeddingTokensPerWord = 1.3
)

// Estimator estimates token counts for text and messages.
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string) int

	// EstimateMessages sums the per-message estimates.
	EstimateMessages(messages []types.Message) int
}

// WordEstimator counts whitespace-separated words and scales them.
type WordEstimator struct {
	perWord float64
}

// NewWordEstimator returns an estimator using perWord tokens per word.
func NewWordEstimator(perWord float64) *WordEstimator {
	return &WordEstimator{perWord: perWord}
}

// EstimateText truncates toward zero, so a single word counts as 0 tokens
// at the chat factor.
func (e *WordEstimator) EstimateText(text string) int {
	return int(float64(Words(text)) * e.perWord)
}

// EstimateMessages estimates each message's text separately and sums the
// truncated results.
func (e *WordEstimator) EstimateMessages(messages []types.Message) int {
	total := 0
	for _, m := range messages {
		total += e.EstimateText(m.Content.Text())
	}
	return total
}

// EstimateAll estimates several inputs and sums the untruncated products,
// truncating once at the end.
func (e *WordEstimator) EstimateAll(inputs []string) int {
	var total float64
	for _, in := range inputs {
		total += float64(Words(in)) * e.perWord
	}
	return int(total)
}

// Words returns the number of whitespace-separated words in text.
func Words(text string) int {
	return len(strings.Fields(text))
}

// NewUsage builds a usage block.
func NewUsage(prompt, completion int) types.Usage {
	return types.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
