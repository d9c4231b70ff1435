// Package tools translates OpenAI tool calling to and from the backend.
//
// Models with native tool support receive structured tool definitions and
// answer with structured tool calls. Every other model gets a text protocol:
// the tool list and call syntax are injected as a system message and calls
// come back as <tool_call> XML regions in the reply text, which are cut out
// of the visible content and turned into tool calls.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// Mode is how tools are conveyed to the backend for one request.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeNative   Mode = "native"
	ModeFallback Mode = "fallback"
)

// callSyntax is the exact call format the fallback prompt asks for.
const callSyntax = "<tool_call>\n<name>function_name</name>\n<arguments>{\"param\": \"value\"}</arguments>\n</tool_call>"

// Outbound is the backend-facing form of a request's tools.
type Outbound struct {
	Mode Mode

	// Native holds backend tool definitions in native mode.
	Native []backend.ToolDefinition

	// Prompt is the system text to inject in fallback mode.
	Prompt string
}

// PrepareOutbound decides how tools reach the backend. A nil or "none"
// tool choice with no tools yields ModeNone.
func PrepareOutbound(tools []types.Tool, choice *types.ToolChoice, nativeSupported bool) Outbound {
	if len(tools) == 0 || (choice != nil && choice.Mode == types.ToolChoiceNone) {
		return Outbound{Mode: ModeNone}
	}

	if nativeSupported {
		defs := make([]backend.ToolDefinition, 0, len(tools))
		for _, t := range tools {
			defs = append(defs, backend.ToolDefinition{
				Type: "function",
				Function: backend.FunctionDefinition{
					Name:        t.Function.Name,
					Description: t.Function.Description,
					Parameters:  t.Function.Parameters,
				},
			})
		}
		return Outbound{Mode: ModeNative, Native: defs}
	}

	return Outbound{Mode: ModeFallback, Prompt: FallbackPrompt(tools, choice)}
}

// FallbackPrompt renders the text protocol for tools. The output is a pure
// function of its inputs.
func FallbackPrompt(tools []types.Tool, choice *types.ToolChoice) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(toolsXML(tools))
	b.WriteString("\n\n")
	b.WriteString(choiceInstruction(choice))
	b.WriteString("\n\nWhen using tools, respond with XML in this exact format:\n")
	b.WriteString(callSyntax)
	b.WriteString("\n\nYou can make multiple tool calls by using multiple <tool_call> blocks.\n")
	b.WriteString("IMPORTANT: After using tools, do NOT include the XML tags in your final response to the user.\n")
	return b.String()
}

func toolsXML(tools []types.Tool) string {
	lines := []string{"<tools>"}
	for _, t := range tools {
		lines = append(lines, `<tool name="`+t.Function.Name+`">`)
		if t.Function.Description != "" {
			lines = append(lines, "<description>"+t.Function.Description+"</description>")
		}
		if params := compactJSON(t.Function.Parameters); params != "" {
			lines = append(lines, "<parameters>"+params+"</parameters>")
		}
		lines = append(lines, "</tool>")
	}
	lines = append(lines, "</tools>")
	return strings.Join(lines, "\n")
}

func choiceInstruction(choice *types.ToolChoice) string {
	if choice == nil {
		return "Use tools when appropriate to help answer the user's request."
	}
	switch choice.Mode {
	case types.ToolChoiceRequired:
		return "You MUST use at least one tool to answer this request."
	case types.ToolChoiceFunction:
		return fmt.Sprintf("You MUST use the '%s' function to answer this request.", choice.Function)
	default:
		return "Use tools when appropriate to help answer the user's request."
	}
}

func compactJSON(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
