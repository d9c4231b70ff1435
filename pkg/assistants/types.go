package assistants

import (
	"encoding/json"

	"mercator-hq/poebridge/pkg/proxy/types"
)

// Object types.
const (
	ObjectAssistant = "assistant"
	ObjectThread    = "thread"
	ObjectMessage   = "thread.message"
	ObjectRun       = "thread.run"
)

// Run statuses.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
	StatusCompleted  = "completed"
)

// Tool is an assistant tool. Only function tools carry a definition.
type Tool struct {
	Type     string                    `json:"type"`
	Function *types.FunctionDefinition `json:"function,omitempty"`
}

// Assistant is a stored assistant.
type Assistant struct {
	ID             string            `json:"id"`
	Object         string            `json:"object"`
	CreatedAt      int64             `json:"created_at"`
	Name           *string           `json:"name"`
	Description    *string           `json:"description"`
	Model          string            `json:"model"`
	Instructions   *string           `json:"instructions"`
	Tools          []Tool            `json:"tools"`
	Metadata       map[string]string `json:"metadata"`
	Temperature    *float64          `json:"temperature,omitempty"`
	TopP           *float64          `json:"top_p,omitempty"`
	ResponseFormat json.RawMessage   `json:"response_format,omitempty"`
}

// AssistantRequest creates or updates an assistant. On update only the
// fields that are set are changed.
type AssistantRequest struct {
	Model          *string           `json:"model"`
	Name           *string           `json:"name"`
	Description    *string           `json:"description"`
	Instructions   *string           `json:"instructions"`
	Tools          []Tool            `json:"tools"`
	Metadata       map[string]string `json:"metadata"`
	Temperature    *float64          `json:"temperature"`
	TopP           *float64          `json:"top_p"`
	ResponseFormat json.RawMessage   `json:"response_format"`
}

// Thread is a stored conversation.
type Thread struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	CreatedAt int64             `json:"created_at"`
	Metadata  map[string]string `json:"metadata"`
}

// ThreadRequest creates or updates a thread. Messages are only read on
// create.
type ThreadRequest struct {
	Messages []MessageRequest  `json:"messages"`
	Metadata map[string]string `json:"metadata"`
}

// MessageText is the text body of a message content block.
type MessageText struct {
	Value       string            `json:"value"`
	Annotations []json.RawMessage `json:"annotations"`
}

// MessageContent is one content block of a thread message.
type MessageContent struct {
	Type string      `json:"type"`
	Text MessageText `json:"text"`
}

// Message is a stored thread message.
type Message struct {
	ID          string            `json:"id"`
	Object      string            `json:"object"`
	CreatedAt   int64             `json:"created_at"`
	ThreadID    string            `json:"thread_id"`
	Role        string            `json:"role"`
	Content     []MessageContent  `json:"content"`
	AssistantID *string           `json:"assistant_id"`
	RunID       *string           `json:"run_id"`
	Attachments json.RawMessage   `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

// Text returns the concatenated text of the message.
func (m *Message) Text() string {
	var s string
	for i, c := range m.Content {
		if i > 0 {
			s += "\n"
		}
		s += c.Text.Value
	}
	return s
}

// MessageRequest creates a message. Content is a string or a list of
// content parts; only text is kept.
type MessageRequest struct {
	Role        string            `json:"role"`
	Content     types.Content     `json:"content"`
	Attachments json.RawMessage   `json:"attachments"`
	Metadata    map[string]string `json:"metadata"`
}

// RunError is the last_error of a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one execution of an assistant over a thread.
type Run struct {
	ID           string            `json:"id"`
	Object       string            `json:"object"`
	CreatedAt    int64             `json:"created_at"`
	ThreadID     string            `json:"thread_id"`
	AssistantID  string            `json:"assistant_id"`
	Status       string            `json:"status"`
	LastError    *RunError         `json:"last_error"`
	StartedAt    *int64            `json:"started_at"`
	CancelledAt  *int64            `json:"cancelled_at"`
	FailedAt     *int64            `json:"failed_at"`
	CompletedAt  *int64            `json:"completed_at"`
	Model        string            `json:"model"`
	Instructions string            `json:"instructions"`
	Tools        []Tool            `json:"tools"`
	Metadata     map[string]string `json:"metadata"`
	Temperature  *float64          `json:"temperature,omitempty"`
	Usage        *types.Usage      `json:"usage"`
}

// Terminal reports whether the run can no longer change.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusCancelled, StatusFailed, StatusCompleted:
		return true
	}
	return false
}

// RunRequest starts a run.
type RunRequest struct {
	AssistantID            string            `json:"assistant_id"`
	Model                  *string           `json:"model"`
	Instructions           *string           `json:"instructions"`
	AdditionalInstructions *string           `json:"additional_instructions"`
	AdditionalMessages     []MessageRequest  `json:"additional_messages"`
	Tools                  []Tool            `json:"tools"`
	Metadata               map[string]string `json:"metadata"`
	Temperature            *float64          `json:"temperature"`
	MaxCompletionTokens    *int              `json:"max_completion_tokens"`
}
