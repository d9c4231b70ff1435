package tokens

import "testing"

func TestRemoveThinkingNoise(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "no marker unchanged",
			raw:  "  plain answer  ",
			want: "  plain answer  ",
		},
		{
			name: "progress lines removed",
			raw:  "Thinking... (1s elapsed)\nThinking... (2s elapsed)\nThe answer is 4.",
			want: "*Thinking...*\n\nThe answer is 4.",
		},
		{
			name: "leading heading is not stripped",
			raw:  "*Thinking...*\n\n> pondering\n\nDone.",
			want: "*Thinking...*\n\n*Thinking...*\n\n> pondering\n\nDone.",
		},
		{
			name: "only noise",
			raw:  "Thinking... Thinking... (3s elapsed)",
			want: "*Thinking...*\n\nI'm thinking about your request.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemoveThinkingNoise(tt.raw); got != tt.want {
				t.Errorf("RemoveThinkingNoise() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEstimateReasoningTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"no reasoning", "Just an answer.", 0},
		{"elapsed wins", "Thinking... (2s elapsed)\nThinking... (5s elapsed)\nok", 375},
		{"marker without time", "Thinking...\nanswer", 10},
		{"think tags", "<think>abcdefgh</think>answer", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateReasoningTokens(tt.text); got != tt.want {
				t.Errorf("EstimateReasoningTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
