package adapter

import (
	"strings"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// Message roles accepted from clients.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var knownRoles = map[string]bool{
	RoleSystem:    true,
	RoleDeveloper: true,
	RoleUser:      true,
	RoleAssistant: true,
	RoleTool:      true,
}

// Validate checks a chat request before any backend work is done.
func Validate(req *types.ChatCompletionRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return apierror.Validation("model", "model is required")
	}
	if len(req.Messages) == 0 {
		return apierror.Validation("messages", "messages must contain at least one message")
	}

	toolNames := make(map[string]bool, len(req.Tools))
	for i, t := range req.Tools {
		if t.Type != "" && t.Type != "function" {
			return apierror.Validation("tools", "tools[%d].type must be 'function', got '%s'", i, t.Type)
		}
		name := t.Function.Name
		if name == "" {
			return apierror.Validation("tools", "tools[%d].function.name is required", i)
		}
		if toolNames[name] {
			return apierror.Validation("tools", "duplicate tool name '%s'", name)
		}
		toolNames[name] = true
	}

	if err := validateToolChoice(req.ToolChoice, toolNames); err != nil {
		return err
	}

	callIDs := make(map[string]bool)
	for i, m := range req.Messages {
		if !knownRoles[m.Role] {
			return apierror.Validation("messages", "messages[%d].role '%s' is not supported", i, m.Role)
		}
		switch m.Role {
		case RoleAssistant:
			for _, c := range m.ToolCalls {
				if c.ID != "" {
					callIDs[c.ID] = true
				}
			}
		case RoleTool:
			if m.ToolCallID == "" {
				return apierror.Validation("messages", "messages[%d] with role 'tool' must have a tool_call_id", i)
			}
			if !callIDs[m.ToolCallID] {
				return apierror.Validation("messages", "messages[%d].tool_call_id '%s' does not match any earlier assistant tool call", i, m.ToolCallID)
			}
		default:
			if len(m.ToolCalls) > 0 {
				return apierror.Validation("messages", "messages[%d] with role '%s' cannot carry tool_calls", i, m.Role)
			}
		}
	}
	return nil
}

func validateToolChoice(choice *types.ToolChoice, toolNames map[string]bool) error {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case types.ToolChoiceAuto, types.ToolChoiceNone:
		return nil
	case types.ToolChoiceRequired:
		if len(toolNames) == 0 {
			return apierror.Validation("tool_choice", "tool_choice 'required' needs at least one tool")
		}
		return nil
	case types.ToolChoiceFunction:
		if !toolNames[choice.Function] {
			return apierror.Validation("tool_choice", "tool_choice names unknown function '%s'", choice.Function)
		}
		return nil
	default:
		return apierror.Validation("tool_choice", "tool_choice '%s' is not supported", choice.Mode)
	}
}
