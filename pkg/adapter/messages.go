package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/tools"
)

// turn is a message reduced to role and text.
type turn struct {
	role string
	text string
}

// buildTurns renders the conversation as text turns, with the tool
// protocol and request-level instructions merged into the system message.
func buildTurns(req *types.ChatCompletionRequest, out tools.Outbound) []turn {
	names := make(map[string]string)
	turns := make([]turn, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem, RoleDeveloper:
			turns = append(turns, turn{role: RoleSystem, text: m.Content.Text()})
		case RoleAssistant:
			for _, c := range m.ToolCalls {
				names[c.ID] = c.Function.Name
			}
			turns = append(turns, turn{role: RoleAssistant, text: renderAssistant(m)})
		case RoleTool:
			turns = append(turns, turn{role: RoleTool, text: renderToolResult(m, names[m.ToolCallID])})
		default:
			turns = append(turns, turn{role: RoleUser, text: m.Content.Text()})
		}
	}

	if out.Mode == tools.ModeFallback {
		turns = prependSystem(turns, out.Prompt)
	}
	if instr := responseFormatInstruction(req.ResponseFormat); instr != "" {
		turns = appendSystem(turns, instr)
	}
	if limit := maxTokens(req); limit > 0 {
		turns = appendSystem(turns, fmt.Sprintf("\nIMPORTANT: Keep your response under %d tokens.", limit))
	}
	return turns
}

// prependSystem puts text in front of the first system message, or adds a
// new leading system message.
func prependSystem(turns []turn, text string) []turn {
	for i := range turns {
		if turns[i].role == RoleSystem {
			turns[i].text = text + "\n\n" + turns[i].text
			return turns
		}
	}
	return append([]turn{{role: RoleSystem, text: text}}, turns...)
}

// appendSystem adds text after the first system message, or adds a new
// leading system message.
func appendSystem(turns []turn, text string) []turn {
	for i := range turns {
		if turns[i].role == RoleSystem {
			turns[i].text += "\n\n" + text
			return turns
		}
	}
	return append([]turn{{role: RoleSystem, text: text}}, turns...)
}

func renderAssistant(m types.Message) string {
	text := m.Content.Text()
	if len(m.ToolCalls) == 0 {
		return text
	}
	parts := make([]string, 0, len(m.ToolCalls)+1)
	if text != "" {
		parts = append(parts, text)
	}
	for _, c := range m.ToolCalls {
		parts = append(parts, fmt.Sprintf("<tool_call>\n<name>%s</name>\n<arguments>%s</arguments>\n</tool_call>",
			c.Function.Name, c.Function.Arguments))
	}
	return strings.Join(parts, "\n")
}

func renderToolResult(m types.Message, name string) string {
	if name == "" {
		return fmt.Sprintf("Tool result (call %s):\n%s", m.ToolCallID, m.Content.Text())
	}
	return fmt.Sprintf("Tool result from %s (call %s):\n%s", name, m.ToolCallID, m.Content.Text())
}

func responseFormatInstruction(rf *types.ResponseFormat) string {
	if rf == nil {
		return ""
	}
	switch rf.Type {
	case "json_object":
		return "You must respond with valid JSON only. Do not include any text before or after the JSON."
	case "json_schema":
		schema := strings.TrimSpace(string(rf.JSONSchema))
		if schema == "" || schema == "null" || schema == "{}" {
			return ""
		}
		var compact json.RawMessage
		if err := json.Unmarshal(rf.JSONSchema, &compact); err == nil {
			if b, err := json.Marshal(compact); err == nil {
				schema = string(b)
			}
		}
		return "You must respond with valid JSON that conforms to this schema: " + schema
	default:
		return ""
	}
}

func maxTokens(req *types.ChatCompletionRequest) int {
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		return *req.MaxTokens
	}
	if req.MaxCompletionTokens != nil && *req.MaxCompletionTokens > 0 {
		return *req.MaxCompletionTokens
	}
	return 0
}

// toProtocol maps turns onto backend roles and attaches files to the last
// user message, or to the last message when there is none.
func toProtocol(turns []turn, atts []backend.Attachment) []backend.ProtocolMessage {
	msgs := make([]backend.ProtocolMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, backend.ProtocolMessage{
			Role:    backendRole(t.role),
			Content: t.text,
		})
	}
	if len(atts) > 0 && len(msgs) > 0 {
		target := len(msgs) - 1
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == backend.RoleUser {
				target = i
				break
			}
		}
		msgs[target].Attachments = atts
	}
	return msgs
}

func backendRole(role string) string {
	switch role {
	case RoleAssistant:
		return backend.RoleBot
	case RoleSystem, RoleDeveloper:
		return backend.RoleSystem
	default:
		return backend.RoleUser
	}
}

// nonTextParts returns every non-text part in conversation order.
func nonTextParts(messages []types.Message) []types.ContentPart {
	var parts []types.ContentPart
	for _, m := range messages {
		parts = append(parts, m.Content.NonText()...)
	}
	return parts
}
