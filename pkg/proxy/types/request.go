package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion request.
// This matches the OpenAI Chat Completions API format so that existing OpenAI
// SDKs work unmodified. Only a subset of sampling parameters reaches the
// backend; the rest are accepted and ignored.
type ChatCompletionRequest struct {
	// Model is the ID of the model to use (e.g., "openai-gpt-4o", "claude-sonnet-4").
	Model string `json:"model"`

	// Messages is the conversation history as a list of messages.
	Messages []Message `json:"messages"`

	// Temperature controls randomness in the response (0.0 to 2.0).
	// Passed to the backend.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	// Converted into a system instruction; not enforced.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// MaxCompletionTokens is the newer name for MaxTokens.
	MaxCompletionTokens *int `json:"max_completion_tokens,omitempty"`

	// TopP controls nucleus sampling. Accepted, ignored.
	TopP *float64 `json:"top_p,omitempty"`

	// N is the number of completions to generate. Accepted, ignored.
	N *int `json:"n,omitempty"`

	// Stream enables server-sent events (SSE) streaming.
	Stream bool `json:"stream,omitempty"`

	// StreamOptions controls extra stream framing such as usage reporting.
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	// Stop is one or more sequences where generation stops. Passed to the backend.
	Stop StringList `json:"stop,omitempty"`

	// PresencePenalty is accepted, ignored.
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty is accepted, ignored.
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// LogitBias is accepted, ignored.
	LogitBias map[string]float64 `json:"logit_bias,omitempty"`

	// User is a unique identifier for the end-user making the request.
	User string `json:"user,omitempty"`

	// Tools is a list of tools/functions the model can call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls which tool the model should use.
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// ResponseFormat specifies the format of the response.
	// Converted into a system instruction; not enforced.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Seed is accepted, ignored.
	Seed *int `json:"seed,omitempty"`
}

// StreamOptions contains options for streaming responses.
type StreamOptions struct {
	// IncludeUsage adds usage to the terminal chunk.
	IncludeUsage bool `json:"include_usage"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the author of the message ("system", "developer", "user",
	// "assistant", or "tool").
	Role string `json:"role"`

	// Content is the message body: a string or a list of content parts.
	Content Content `json:"content"`

	// Name is the name of the author (optional).
	Name string `json:"name,omitempty"`

	// ToolCalls is a list of tool calls made by the assistant (optional).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is the ID of the tool call this message is responding to (for tool role).
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool represents a function/tool that the model can call.
type Tool struct {
	// Type is always "function" for function calling.
	Type string `json:"type"`

	// Function describes the function to call.
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a function that can be called by the model.
type FunctionDefinition struct {
	// Name is the name of the function to call.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters.
	// Kept raw so it is forwarded exactly as the client wrote it.
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall represents a function call made by the model.
type ToolCall struct {
	// Index is the position of the call, set only in streaming deltas.
	Index *int `json:"index,omitempty"`

	// ID is a unique identifier for the tool call.
	ID string `json:"id,omitempty"`

	// Type is always "function" for function calling.
	Type string `json:"type,omitempty"`

	// Function contains the function name and arguments.
	Function FunctionCall `json:"function"`

	// ParseError is set when fallback-parsed arguments are not valid JSON.
	// Arguments then hold the raw text. Clients decide how to handle it.
	ParseError string `json:"parse_error,omitempty"`
}

// FunctionCall represents the function name and arguments.
type FunctionCall struct {
	// Name is the name of the function to call.
	Name string `json:"name,omitempty"`

	// Arguments is a JSON string containing the function arguments.
	Arguments string `json:"arguments"`
}

// ResponseFormat specifies the format of the model's output.
type ResponseFormat struct {
	// Type is the format type ("text", "json_object" or "json_schema").
	Type string `json:"type"`

	// JSONSchema is the schema for "json_schema".
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
	ToolChoiceFunction = "function"
)

// ToolChoice is either a mode string ("auto", "none", "required") or an
// object naming one function.
type ToolChoice struct {
	// Mode is "auto", "none", "required" or "function".
	Mode string

	// Function is the forced function name when Mode is "function".
	Function string
}

// UnmarshalJSON accepts both the string and the object form.
func (c *ToolChoice) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		c.Mode = mode
		c.Function = ""
		return nil
	}

	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("tool_choice must be a string or an object: %w", err)
	}
	c.Mode = obj.Type
	c.Function = obj.Function.Name
	return nil
}

// MarshalJSON writes the string form for modes and the object form for a
// forced function.
func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.Mode != ToolChoiceFunction {
		return json.Marshal(c.Mode)
	}
	return json.Marshal(map[string]interface{}{
		"type":     ToolChoiceFunction,
		"function": map[string]string{"name": c.Function},
	})
}

// StringList is a JSON value that may be a single string or a list of strings.
type StringList []string

// UnmarshalJSON accepts a string, a list of strings or null.
func (s *StringList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// CompletionRequest represents a legacy /v1/completions request.
type CompletionRequest struct {
	Model       string     `json:"model"`
	Prompt      StringList `json:"prompt"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	TopP        *float64   `json:"top_p,omitempty"`
	N           *int       `json:"n,omitempty"`
	Stream      bool       `json:"stream,omitempty"`
	Stop        StringList `json:"stop,omitempty"`
	Suffix      string     `json:"suffix,omitempty"`
	Echo        bool       `json:"echo,omitempty"`
	User        string     `json:"user,omitempty"`
}

// EmbeddingRequest represents a /v1/embeddings request.
type EmbeddingRequest struct {
	// Input is one text or a list of texts.
	Input StringList `json:"input"`

	// Model is the embedding model name, mapped to a backend bot.
	Model string `json:"model"`

	// EncodingFormat is "float" (default) or "base64".
	EncodingFormat string `json:"encoding_format,omitempty"`

	// Dimensions is the vector length. Defaults to the configured value.
	Dimensions *int `json:"dimensions,omitempty"`

	User string `json:"user,omitempty"`
}

// ModerationRequest represents a /v1/moderations request.
type ModerationRequest struct {
	Input StringList `json:"input"`
	Model string     `json:"model,omitempty"`
}

// TokenCountRequest represents a /v1/tokens/count request. Either Messages
// or Input is counted.
type TokenCountRequest struct {
	Model    string     `json:"model,omitempty"`
	Messages []Message  `json:"messages,omitempty"`
	Input    StringList `json:"input,omitempty"`
}

// ImageGenerationRequest represents a /v1/images/generations request.
// Edits and variations arrive as multipart forms and are decoded into the
// same structure by the handlers.
type ImageGenerationRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	N              *int   `json:"n,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	Size           string `json:"size,omitempty"`
	Style          string `json:"style,omitempty"`
	User           string `json:"user,omitempty"`
}
