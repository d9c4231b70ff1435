package simulated

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/backend/backendtest"
	"mercator-hq/poebridge/pkg/config"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
)

func newEngine(fake *backendtest.Backend) *Engine {
	cfg := config.Defaults()
	return New(fake, cfg.Embeddings, cfg.Moderations)
}

func intPtr(n int) *int { return &n }

func TestEmbeddings(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		dims      int
		wantFirst float64
	}{
		{"plain array", "[0.5, -0.25, 2]", 8, 0.5},
		{"fenced array", "```json\n[0.5, -0.25]\n```", 8, 0.5},
		{"truncated", "[0.5, 0.1, 0.2, 0.3]", 2, 0.5},
		{"prose falls back to hash", "I cannot do that.", 12, -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := backendtest.New(backendtest.Text(tt.reply))
			e := newEngine(fake)

			res, err := e.Embeddings(context.Background(), &types.EmbeddingRequest{
				Input:      types.StringList{"the quick brown fox"},
				Model:      "text-embedding-3-small",
				Dimensions: intPtr(tt.dims),
			})
			if err != nil {
				t.Fatalf("Embeddings() error = %v", err)
			}

			vec := res.Value.Data[0].Embedding.([]float64)
			if len(vec) != tt.dims {
				t.Fatalf("len(vec) = %d, want %d", len(vec), tt.dims)
			}
			if vec[0] != tt.wantFirst {
				t.Errorf("vec[0] = %v, want %v", vec[0], tt.wantFirst)
			}
			for i, v := range vec {
				if v < -1 || v > 1 {
					t.Errorf("vec[%d] = %v, outside [-1, 1]", i, v)
				}
			}
			// 4 words * 1.3
			if res.Value.Usage.PromptTokens != 5 {
				t.Errorf("PromptTokens = %d, want 5", res.Value.Usage.PromptTokens)
			}
		})
	}
}

func TestEmbeddings_DeterministicPadding(t *testing.T) {
	run := func() []float64 {
		e := newEngine(backendtest.New(backendtest.Text("[0.1]")))
		res, err := e.Embeddings(context.Background(), &types.EmbeddingRequest{Input: types.StringList{"same text"}, Dimensions: intPtr(32)})
		if err != nil {
			t.Fatal(err)
		}
		return res.Value.Data[0].Embedding.([]float64)
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vec[%d] differs: %v vs %v", i, a[i], b[i])
		}
	}
	for i := 1; i < len(a); i++ {
		if math.Abs(a[i]) > 0.1 {
			t.Errorf("padding vec[%d] = %v, want within 0.1", i, a[i])
		}
	}
}

func TestEmbeddings_PromptAndBot(t *testing.T) {
	fake := backendtest.New(backendtest.Text("[0]"))
	e := newEngine(fake)

	_, err := e.Embeddings(context.Background(), &types.EmbeddingRequest{Input: types.StringList{"a", "b"}, Model: "text-embedding-3-large"})
	if err != nil {
		t.Fatal(err)
	}
	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("backend calls = %d, want 2", len(calls))
	}
	if calls[0].Bot != "Claude-3.5-Sonnet" {
		t.Errorf("bot = %q, want Claude-3.5-Sonnet", calls[0].Bot)
	}
	if !strings.Contains(calls[0].Request.Query[0].Content, "JSON array of 100 floating-point numbers") {
		t.Errorf("prompt = %q", calls[0].Request.Query[0].Content)
	}
	if got := e.EmbeddingBot("unmapped"); got != "Claude-3-Haiku" {
		t.Errorf("EmbeddingBot(unmapped) = %q", got)
	}
}

func TestEmbeddings_Base64(t *testing.T) {
	e := newEngine(backendtest.New(backendtest.Text("[0.5, -1]")))
	res, err := e.Embeddings(context.Background(), &types.EmbeddingRequest{
		Input: types.StringList{"x"}, Dimensions: intPtr(2), EncodingFormat: "base64",
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(res.Value.Data[0].Embedding.(string))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 8 {
		t.Fatalf("len(raw) = %d, want 8", len(raw))
	}
	got := math.Float32frombits(binary.LittleEndian.Uint32(raw[4:]))
	if got != -1 {
		t.Errorf("second value = %v, want -1", got)
	}
}

func TestEmbeddings_Errors(t *testing.T) {
	berr := &backend.Error{Bot: "Claude-3-Haiku", StatusCode: 500}
	tests := []struct {
		name    string
		req     types.EmbeddingRequest
		reply   backendtest.Reply
		wantErr func(error) bool
	}{
		{
			name:    "empty input",
			req:     types.EmbeddingRequest{},
			wantErr: func(err error) bool { return apierror.Is(err, apierror.KindValidation) },
		},
		{
			name:    "zero dimensions",
			req:     types.EmbeddingRequest{Input: types.StringList{"x"}, Dimensions: intPtr(0)},
			wantErr: func(err error) bool { return apierror.Is(err, apierror.KindValidation) },
		},
		{
			name:    "bad encoding",
			req:     types.EmbeddingRequest{Input: types.StringList{"x"}, EncodingFormat: "hex"},
			wantErr: func(err error) bool { return apierror.Is(err, apierror.KindValidation) },
		},
		{
			name:    "backend failure",
			req:     types.EmbeddingRequest{Input: types.StringList{"x"}},
			reply:   backendtest.Reply{Err: berr},
			wantErr: func(err error) bool { return errors.Is(err, berr) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(backendtest.New(tt.reply))
			_, err := e.Embeddings(context.Background(), &tt.req)
			if !tt.wantErr(err) {
				t.Errorf("Embeddings() error = %v", err)
			}
		})
	}
}

func TestModerate(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantFlagged bool
		wantTrue    []string
	}{
		{
			name:        "violent",
			reply:       `{"flagged": true, "violence": true, "self_harm": true}`,
			wantFlagged: true,
			wantTrue:    []string{"violence", "self-harm"},
		},
		{
			name:  "clean fenced",
			reply: "```json\n{\"flagged\": false}\n```",
		},
		{
			name:  "malformed verdict is not flagged",
			reply: "This text is harmful and should be flagged.",
		},
		{
			name:  "array is not a verdict",
			reply: "[true]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := backendtest.New(backendtest.Text(tt.reply))
			e := newEngine(fake)

			res, err := e.Moderate(context.Background(), &types.ModerationRequest{Input: types.StringList{"some text"}})
			if err != nil {
				t.Fatalf("Moderate() error = %v", err)
			}
			if !ids.HasPrefix(res.Value.ID, ids.Moderation) || len(res.Value.ID) != len(ids.Moderation)+29 {
				t.Errorf("ID = %q", res.Value.ID)
			}
			if res.Value.Model != "text-moderation-latest" {
				t.Errorf("Model = %q", res.Value.Model)
			}
			if fake.Calls()[0].Bot != "gpt-4o-mini" {
				t.Errorf("bot = %q", fake.Calls()[0].Bot)
			}

			r := res.Value.Results[0]
			if r.Flagged != tt.wantFlagged {
				t.Errorf("Flagged = %v, want %v", r.Flagged, tt.wantFlagged)
			}
			if len(r.Categories) != 11 || len(r.CategoryScores) != 11 {
				t.Fatalf("categories = %d, scores = %d, want 11", len(r.Categories), len(r.CategoryScores))
			}
			want := make(map[string]bool)
			for _, c := range tt.wantTrue {
				want[c] = true
			}
			for _, c := range Categories {
				if r.Categories[c] != want[c] {
					t.Errorf("Categories[%s] = %v, want %v", c, r.Categories[c], want[c])
				}
				score := clearScore
				if want[c] {
					score = flaggedScore
				}
				if r.CategoryScores[c] != score {
					t.Errorf("CategoryScores[%s] = %v, want %v", c, r.CategoryScores[c], score)
				}
			}
		})
	}
}

func TestCountTokens(t *testing.T) {
	e := newEngine(backendtest.New())

	tests := []struct {
		name string
		req  types.TokenCountRequest
		want int
	}{
		{
			name: "messages",
			req: types.TokenCountRequest{Messages: []types.Message{
				{Role: "user", Content: types.TextContent("one two three four")},
				{Role: "assistant", Content: types.TextContent("five")},
			}},
			want: 3,
		},
		{
			name: "input",
			req:  types.TokenCountRequest{Input: types.StringList{"one two", "three four"}},
			want: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.CountTokens(&tt.req)
			if err != nil {
				t.Fatalf("CountTokens() error = %v", err)
			}
			if res.Value.TotalTokens != tt.want {
				t.Errorf("TotalTokens = %d, want %d", res.Value.TotalTokens, tt.want)
			}
		})
	}

	if _, err := e.CountTokens(&types.TokenCountRequest{}); !apierror.Is(err, apierror.KindValidation) {
		t.Errorf("CountTokens(empty) error = %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"[1]", "[1]"},
		{"```json\n[1]\n```", "[1]"},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"```[1]```", "[1]"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbeddingPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("a", maxPromptText-1) + strings.Repeat("é", 10)
	prompt := embeddingPrompt(text, 8)

	if !utf8.ValidString(prompt) {
		t.Fatal("embeddingPrompt() produced invalid UTF-8")
	}
	if strings.Contains(prompt, `\x`) {
		t.Errorf("embeddingPrompt() quotes a split rune: %q", prompt)
	}
	want := `"` + strings.Repeat("a", maxPromptText-1) + `..."`
	if !strings.Contains(prompt, want) {
		t.Errorf("embeddingPrompt() missing truncated text %q", want)
	}
}
