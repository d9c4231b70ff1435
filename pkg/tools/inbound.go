package tools

import (
	"encoding/json"
	"strings"

	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
)

const (
	openTag   = "<tool_call>"
	closeTag  = "</tool_call>"
	nameOpen  = "<name>"
	nameClose = "</name>"
	argsOpen  = "<arguments>"
	argsClose = "</arguments>"
)

// ParseErrorInvalidJSON is set on calls whose arguments are not valid JSON.
const ParseErrorInvalidJSON = "arguments are not valid JSON"

// regionState classifies text that starts with the opening tag.
type regionState int

const (
	// regionInvalid can never become a call region.
	regionInvalid regionState = iota
	// regionOpen is a prefix of a region; more text may complete it.
	regionOpen
	// regionComplete is a full region.
	regionComplete
)

// ParseInbound turns a complete reply into tool calls and visible text.
//
// Native calls take precedence: when any are present they are returned with
// ids filled in and text is returned unchanged. Otherwise, if the fallback
// protocol was used, call regions are extracted in document order and cut
// out of the text byte for byte. Incomplete regions stay in the text.
func ParseInbound(text string, native []backend.ToolCall, usedFallback bool) ([]types.ToolCall, string) {
	if len(native) > 0 {
		return FromNative(native), text
	}
	if !usedFallback {
		return nil, text
	}
	return scan(text)
}

// FromNative converts assembled backend calls to wire calls.
func FromNative(native []backend.ToolCall) []types.ToolCall {
	calls := make([]types.ToolCall, 0, len(native))
	for _, c := range native {
		id := c.ID
		if id == "" {
			id = ids.New(ids.ToolCall)
		}
		args := c.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		calls = append(calls, types.ToolCall{
			ID:   id,
			Type: "function",
			Function: types.FunctionCall{
				Name:      c.Name,
				Arguments: args,
			},
		})
	}
	return calls
}

// scan is a single left-to-right pass over text.
func scan(text string) ([]types.ToolCall, string) {
	var (
		calls   []types.ToolCall
		visible strings.Builder
		rest    = text
	)
	for {
		idx := strings.Index(rest, openTag)
		if idx < 0 {
			visible.WriteString(rest)
			break
		}
		visible.WriteString(rest[:idx])
		rest = rest[idx:]

		call, n, state := parseRegion(rest)
		if state != regionComplete || joinsOpenTag(visible.String(), rest[n:]) {
			visible.WriteString(openTag)
			rest = rest[len(openTag):]
			continue
		}
		calls = append(calls, call)
		rest = rest[n:]
	}
	return calls, visible.String()
}

// parseRegion parses a call region at the start of s, which begins with the
// opening tag. The arguments end at the first closing arguments tag, which
// must be followed by the closing call tag, with only whitespace between.
func parseRegion(s string) (types.ToolCall, int, regionState) {
	pos := len(openTag)

	pos, state := expect(s, skipSpace(s, pos), nameOpen)
	if state != regionComplete {
		return types.ToolCall{}, 0, state
	}
	end := strings.IndexByte(s[pos:], '<')
	if end < 0 {
		return types.ToolCall{}, 0, regionOpen
	}
	name := strings.TrimSpace(s[pos : pos+end])
	if name == "" {
		return types.ToolCall{}, 0, regionInvalid
	}
	pos, state = expect(s, pos+end, nameClose)
	if state != regionComplete {
		return types.ToolCall{}, 0, state
	}
	pos, state = expect(s, skipSpace(s, pos), argsOpen)
	if state != regionComplete {
		return types.ToolCall{}, 0, state
	}
	end = strings.Index(s[pos:], argsClose)
	if end < 0 {
		return types.ToolCall{}, 0, regionOpen
	}
	args := strings.TrimSpace(s[pos : pos+end])
	pos, state = expect(s, skipSpace(s, pos+end+len(argsClose)), closeTag)
	if state != regionComplete {
		return types.ToolCall{}, 0, state
	}
	return newFallbackCall(name, args), pos, regionComplete
}

// expect checks for tag at s[pos:] and returns the offset after it.
func expect(s string, pos int, tag string) (int, regionState) {
	rest := s[pos:]
	if strings.HasPrefix(rest, tag) {
		return pos + len(tag), regionComplete
	}
	if len(rest) < len(tag) && strings.HasPrefix(tag, rest) {
		return pos, regionOpen
	}
	return pos, regionInvalid
}

func skipSpace(s string, pos int) int {
	for pos < len(s) {
		switch s[pos] {
		case ' ', '\t', '\r', '\n', '\f':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// joinsOpenTag reports whether cutting a region out between before and
// after would spell a new opening tag across the cut. Such regions are left
// in the text so that parsing the visible text again finds nothing new.
func joinsOpenTag(before, after string) bool {
	joins, _ := joinState(before, after)
	return joins
}

// joinState is joinsOpenTag for streamed text; decided is false while after
// is too short to tell.
func joinState(before, after string) (joins, decided bool) {
	decided = true
	for k := 1; k < len(openTag) && k <= len(before); k++ {
		if !strings.HasSuffix(before, openTag[:k]) {
			continue
		}
		need := openTag[k:]
		if strings.HasPrefix(after, need) {
			return true, true
		}
		if len(after) < len(need) && strings.HasPrefix(need, after) {
			decided = false
		}
	}
	return false, decided
}

func newFallbackCall(name, args string) types.ToolCall {
	call := types.ToolCall{
		ID:   ids.New(ids.ToolCall),
		Type: "function",
		Function: types.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
	if args == "" {
		call.Function.Arguments = "{}"
	} else if !json.Valid([]byte(args)) {
		call.ParseError = ParseErrorInvalidJSON
	}
	return call
}
