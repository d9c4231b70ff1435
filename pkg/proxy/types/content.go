package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
	PartFile     = "file"
	// PartInputFile is the Responses-API spelling of PartFile, accepted as a synonym.
	PartInputFile = "input_file"
)

// Content is a message body. OpenAI allows either a plain string or an
// ordered list of typed parts; both decode into Content. A string decodes
// to a single text part with IsString set so it re-encodes as a string.
type Content struct {
	Parts    []ContentPart
	IsString bool
}

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *FilePart `json:"file,omitempty"`
}

// ImageURL is the payload of an image_url part. URL is an http(s) URL,
// a data: URL with base64 bytes, or a registered file id.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// FilePart is the payload of a file part: either a registered file id or
// inline base64 data (optionally a data: URL).
type FilePart struct {
	FileID   string `json:"file_id,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// TextContent returns Content holding a single string.
func TextContent(s string) Content {
	return Content{Parts: []ContentPart{{Type: PartText, Text: s}}, IsString: true}
}

// UnmarshalJSON accepts a string, a list of parts or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(trimmed, &parts); err != nil {
		return fmt.Errorf("content must be a string or a list of content parts: %w", err)
	}
	*c = Content{Parts: parts}
	return nil
}

// MarshalJSON writes the string form when the content was a string.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsString {
		return json.Marshal(c.Text())
	}
	if c.Parts == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.Parts)
}

// IsEmpty reports whether the content has no parts at all.
func (c Content) IsEmpty() bool {
	return len(c.Parts) == 0
}

// Text joins all text parts with newlines. Non-text parts are skipped.
func (c Content) Text() string {
	if c.IsString && len(c.Parts) == 1 {
		return c.Parts[0].Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// NonText returns the parts that are not plain text.
func (c Content) NonText() []ContentPart {
	var out []ContentPart
	for _, p := range c.Parts {
		if p.Type != PartText {
			out = append(out, p)
		}
	}
	return out
}
