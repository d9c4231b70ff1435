package tools

import (
	"strings"

	"mercator-hq/poebridge/pkg/proxy/types"
)

// DefaultLookahead bounds how many bytes the filter withholds while a call
// region is still open.
const DefaultLookahead = 8192

// Filter extracts fallback call regions from streamed text.
//
// Bytes that may belong to a call region are withheld until the region
// completes, turns out not to be one, or grows past the lookahead bound.
// Released text concatenates to the visible text ParseInbound would return
// for the whole reply, except for regions longer than the bound, which are
// released as text.
type Filter struct {
	lookahead int
	pending   string
	// tail holds the last released bytes that could start an opening tag.
	tail string
}

// NewFilter returns a filter with the given lookahead; values <= 0 use
// DefaultLookahead.
func NewFilter(lookahead int) *Filter {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Filter{lookahead: lookahead}
}

// Push feeds a text delta and returns the text that is safe to show and any
// calls that completed.
func (f *Filter) Push(delta string) (string, []types.ToolCall) {
	f.pending += delta
	return f.drain(false)
}

// Flush releases everything still withheld. Call it once at stream end.
func (f *Filter) Flush() (string, []types.ToolCall) {
	return f.drain(true)
}

// Pending returns the number of withheld bytes.
func (f *Filter) Pending() int {
	return len(f.pending)
}

func (f *Filter) drain(final bool) (string, []types.ToolCall) {
	var (
		out   strings.Builder
		calls []types.ToolCall
	)
	for {
		idx := strings.Index(f.pending, openTag)
		if idx < 0 {
			keep := 0
			if !final {
				keep = partialOpenSuffix(f.pending)
			}
			f.release(&out, f.pending[:len(f.pending)-keep])
			f.pending = f.pending[len(f.pending)-keep:]
			break
		}

		f.release(&out, f.pending[:idx])
		f.pending = f.pending[idx:]

		call, n, state := parseRegion(f.pending)
		if state == regionComplete {
			joins, decided := joinState(f.tail, f.pending[n:])
			if !decided && !final {
				break
			}
			if !joins {
				calls = append(calls, call)
				f.pending = f.pending[n:]
				continue
			}
		} else if state == regionOpen && !final && len(f.pending) <= f.lookahead {
			// Region still open; wait for more text.
			break
		}

		f.release(&out, openTag)
		f.pending = f.pending[len(openTag):]
	}
	return out.String(), calls
}

// release writes s to out and remembers its end for the join check.
func (f *Filter) release(out *strings.Builder, s string) {
	out.WriteString(s)
	f.tail += s
	if limit := len(openTag) - 1; len(f.tail) > limit {
		f.tail = f.tail[len(f.tail)-limit:]
	}
}

// partialOpenSuffix returns the length of the longest suffix of s that is a
// proper prefix of the opening tag.
func partialOpenSuffix(s string) int {
	limit := len(openTag) - 1
	if len(s) < limit {
		limit = len(s)
	}
	for n := limit; n > 0; n-- {
		if strings.HasPrefix(openTag, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}
