package backend

import "encoding/json"

// Protocol roles understood by the backend.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleBot    = "bot"
)

// ProtocolVersion is sent in every query.
const ProtocolVersion = "1.0"

// Attachment is a file the backend can read, referenced by URL. Uploaded
// bytes become attachments through Client.Upload.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Name        string `json:"name"`
}

// ProtocolMessage is one turn of a backend conversation.
type ProtocolMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ContentType string       `json:"content_type"`
	Attachments []Attachment `json:"attachments"`
}

// ToolDefinition is a native tool spec in the OpenAI function shape.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one native tool.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// QueryRequest is the body of a bot query.
type QueryRequest struct {
	Version        string            `json:"version"`
	Type           string            `json:"type"`
	Query          []ProtocolMessage `json:"query"`
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	Temperature    *float64          `json:"temperature,omitempty"`
	StopSequences  []string          `json:"stop_sequences,omitempty"`
	Tools          []ToolDefinition  `json:"tools,omitempty"`
}

// NewQuery returns a query request for the given messages with the
// protocol constants filled in.
func NewQuery(messages []ProtocolMessage) *QueryRequest {
	for i := range messages {
		if messages[i].ContentType == "" {
			messages[i].ContentType = "text/markdown"
		}
		if messages[i].Attachments == nil {
			messages[i].Attachments = []Attachment{}
		}
	}
	return &QueryRequest{
		Version: ProtocolVersion,
		Type:    "query",
		Query:   messages,
	}
}

// EventKind identifies a backend stream event.
type EventKind string

// Event kinds of the backend's SSE protocol.
const (
	// EventText appends text to the response.
	EventText EventKind = "text"
	// EventReplace replaces the whole response text so far.
	EventReplace EventKind = "replace_response"
	// EventJSON carries structured data; native tool call fragments arrive here.
	EventJSON EventKind = "json"
	// EventFile carries a generated file (images, documents).
	EventFile EventKind = "file"
	// EventError reports a backend failure; nothing follows it.
	EventError EventKind = "error"
	// EventDone ends the response.
	EventDone EventKind = "done"
	// EventMeta carries response metadata and is otherwise ignored.
	EventMeta EventKind = "meta"
)

// Event is one decoded backend stream event.
type Event struct {
	Kind EventKind

	// Text is set for EventText, EventReplace and EventError.
	Text string

	// ToolCalls holds native tool call fragments from EventJSON.
	ToolCalls []ToolCallDelta

	// Attachment is set for EventFile.
	Attachment *Attachment

	// AllowRetry and ErrorType are set for EventError.
	AllowRetry bool
	ErrorType  string

	// Raw is the undecoded data payload.
	Raw json.RawMessage
}

// ToolCallDelta is a fragment of a native tool call. The first fragment of
// a call carries its ID and Name; later fragments append to Arguments.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}
