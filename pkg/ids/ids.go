// Package ids generates the prefixed opaque identifiers used on the wire.
package ids

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Prefixes for each object kind.
const (
	ChatCompletion = "chatcmpl-"
	Completion     = "cmpl-"
	Moderation     = "modr-"
	Assistant      = "asst_"
	Thread         = "thread_"
	Message        = "msg_"
	Run            = "run_"
	ToolCall       = "call_"
	File           = "file-"
)

// Hex returns n random lowercase hex characters.
func Hex(n int) string {
	var b strings.Builder
	b.Grow(n + 32)
	for b.Len() < n {
		u := uuid.New()
		b.WriteString(hex.EncodeToString(u[:]))
	}
	return b.String()[:n]
}

// New returns prefix followed by the number of hex characters the wire
// format uses for that prefix.
func New(prefix string) string {
	switch prefix {
	case ChatCompletion, Completion, Moderation:
		return prefix + Hex(29)
	default:
		return prefix + Hex(24)
	}
}

// HasPrefix reports whether id looks like an id of the given kind.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}
