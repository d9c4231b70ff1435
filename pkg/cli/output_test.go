package cli

import (
	"bytes"
	"encoding/json"
	"testing"
)

type modelTable struct {
	IDs []string `json:"ids"`
}

func (m modelTable) Header() []string { return []string{"ID", "OWNER"} }

func (m modelTable) Rows() [][]string {
	rows := make([][]string, 0, len(m.IDs))
	for _, id := range m.IDs {
		rows = append(rows, []string{id, "poe"})
	}
	return rows
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
		want string
	}{
		{"plain value", "hello", "hello\n"},
		{"table", modelTable{IDs: []string{"gpt-4o", "claude-3-opus"}}, "ID             OWNER\ngpt-4o         poe\nclaude-3-opus  poe\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&TextFormatter{}).FormatTo(&buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, modelTable{IDs: []string{"a"}}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	var got modelTable
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got.IDs) != 1 || got.IDs[0] != "a" {
		t.Errorf("decoded = %+v, want ids [a]", got)
	}
}
