package ids

import (
	"regexp"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		prefix  string
		pattern string
	}{
		{ChatCompletion, `^chatcmpl-[0-9a-f]{29}$`},
		{Completion, `^cmpl-[0-9a-f]{29}$`},
		{Moderation, `^modr-[0-9a-f]{29}$`},
		{Assistant, `^asst_[0-9a-f]{24}$`},
		{Thread, `^thread_[0-9a-f]{24}$`},
		{Message, `^msg_[0-9a-f]{24}$`},
		{Run, `^run_[0-9a-f]{24}$`},
		{ToolCall, `^call_[0-9a-f]{24}$`},
		{File, `^file-[0-9a-f]{24}$`},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got := New(tt.prefix)
			if !regexp.MustCompile(tt.pattern).MatchString(got) {
				t.Errorf("New(%q) = %q, want match %s", tt.prefix, got, tt.pattern)
			}
		})
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New(ToolCall)
		if seen[id] {
			t.Fatalf("New() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestHex_Long(t *testing.T) {
	if got := Hex(70); len(got) != 70 {
		t.Errorf("len(Hex(70)) = %d, want 70", len(got))
	}
}
