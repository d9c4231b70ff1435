package tokens

import (
	"testing"

	"mercator-hq/poebridge/pkg/proxy/types"
)

func TestWordEstimator_EstimateText(t *testing.T) {
	est := NewWordEstimator(ChatTokensPerWord)

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single word truncates", "hello", 0},
		{"four words", "one two three four", 3},
		{"whitespace runs", "  a \n\t b   c  d ", 3},
		{"ten words", "a b c d e f g h i j", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := est.EstimateText(tt.text); got != tt.want {
				t.Errorf("EstimateText(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestWordEstimator_EstimateMessages(t *testing.T) {
	est := NewWordEstimator(ChatTokensPerWord)
	messages := []types.Message{
		{Role: "system", Content: types.TextContent("be brief please ok")},
		{Role: "user", Content: types.Content{Parts: []types.ContentPart{
			{Type: types.PartText, Text: "what is"},
			{Type: types.PartImageURL, ImageURL: &types.ImageURL{URL: "https://x/y.png"}},
			{Type: types.PartText, Text: "this thing"},
		}}},
	}
	// 4 words -> 3, 4 words -> 3
	if got := est.EstimateMessages(messages); got != 6 {
		t.Errorf("EstimateMessages() = %d, want 6", got)
	}
}

func TestWordEstimator_EstimateAll(t *testing.T) {
	est := NewWordEstimator(EmbeddingTokensPerWord)
	// Truncated once over the sum: 3 x 1.3 = 3.9 -> 3, and 2.6 + 3.9 = 6.5 -> 6.
	if got := est.EstimateAll([]string{"a", "b", "c"}); got != 3 {
		t.Errorf("EstimateAll() = %d, want 3", got)
	}
	if got := est.EstimateAll([]string{"a b", "c d e"}); got != 6 {
		t.Errorf("EstimateAll() = %d, want 6", got)
	}
}

func TestNewUsage(t *testing.T) {
	u := NewUsage(3, 4)
	if u.PromptTokens != 3 || u.CompletionTokens != 4 || u.TotalTokens != 7 {
		t.Errorf("NewUsage() = %+v", u)
	}
}
