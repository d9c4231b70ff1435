// Package stream converts a backend event stream into OpenAI chat
// completion chunks.
//
// The multiplexer keeps one invariant: the content deltas it emits
// concatenate to the final visible text. Cumulative replace_response
// events only contribute the part that extends what was already sent, and
// every stream ends with exactly one terminal chunk or exactly one error.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"mercator-hq/poebridge/pkg/attachments"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/ids"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/tools"
)

// Event is one item on the output channel. Exactly one of Chunk and Err is
// set. An Err event is always the last one.
type Event struct {
	Chunk *types.ChatCompletionStreamChunk
	Err   error
}

// Observer is notified once per emitted chunk.
type Observer interface {
	ObserveStreamChunk()
}

// Summary describes a finished stream.
type Summary struct {
	// Text is the concatenation of all emitted content deltas.
	Text string

	// ToolCalls is the number of tool calls emitted.
	ToolCalls int
}

// Options configures one multiplexed stream.
type Options struct {
	ID      string
	Model   string
	Created int64

	// Filter extracts text-protocol tool calls. Nil when the request did
	// not use the fallback protocol.
	Filter *tools.Filter

	// Usage, when set, is called with the final summary and its result is
	// attached to the terminal chunk.
	Usage func(Summary) *types.Usage

	Observer Observer
	Logger   *slog.Logger
}

// Run starts the multiplexer. The returned channel is unbuffered, so the
// multiplexer is never more than one chunk ahead of the consumer. It is
// closed after the terminal chunk or the error event, or when ctx is done.
// src is always closed.
func Run(ctx context.Context, src backend.Stream, opts Options) <-chan Event {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	out := make(chan Event)
	m := &multiplexer{
		ctx:   ctx,
		src:   src,
		opts:  opts,
		out:   out,
		calls: make(map[int]*callState),
	}
	go m.run()
	return out
}

type callState struct {
	outIndex int
	id       string
}

type multiplexer struct {
	ctx  context.Context
	src  backend.Stream
	opts Options
	out  chan<- Event

	// base is the backend's cumulative text as far as it has been consumed.
	base string
	// final is everything sent as content.
	final strings.Builder

	calls     map[int]*callState
	nextIndex int
}

func (m *multiplexer) run() {
	defer close(m.out)
	defer m.src.Close()

	if !m.send(types.Delta{Role: "assistant"}, nil) {
		return
	}

	for {
		ev, err := m.src.Next(m.ctx)
		if errors.Is(err, io.EOF) {
			m.finish()
			return
		}
		if err != nil {
			m.fail(err)
			return
		}

		ok := true
		switch ev.Kind {
		case backend.EventText:
			m.base += ev.Text
			ok = m.emitText(ev.Text)
		case backend.EventReplace:
			ok = m.replace(ev.Text)
		case backend.EventJSON:
			ok = m.emitNativeCalls(ev.ToolCalls)
		case backend.EventFile:
			if ev.Attachment != nil {
				ok = m.emitContent(attachments.Markdown(*ev.Attachment))
			}
		case backend.EventDone:
			m.finish()
			return
		}
		if !ok {
			return
		}
	}
}

func (m *multiplexer) replace(text string) bool {
	if !strings.HasPrefix(text, m.base) {
		m.opts.Logger.Warn("backend replaced already streamed text; only later growth will be sent",
			"sent_bytes", len(m.base),
			"replacement_bytes", len(text),
		)
		m.base = text
		return true
	}
	delta := text[len(m.base):]
	m.base = text
	if delta == "" {
		return true
	}
	return m.emitText(delta)
}

// emitText sends backend text through the tool filter, if any.
func (m *multiplexer) emitText(delta string) bool {
	if m.opts.Filter == nil {
		return m.emitContent(delta)
	}
	visible, calls := m.opts.Filter.Push(delta)
	if !m.emitContent(visible) {
		return false
	}
	return m.emitFallbackCalls(calls)
}

func (m *multiplexer) emitContent(text string) bool {
	if text == "" {
		return true
	}
	m.final.WriteString(text)
	return m.send(types.Delta{Content: text}, nil)
}

func (m *multiplexer) emitFallbackCalls(calls []types.ToolCall) bool {
	for _, c := range calls {
		idx := m.nextIndex
		m.nextIndex++
		c.Index = &idx
		if !m.send(types.Delta{ToolCalls: []types.ToolCall{c}}, nil) {
			return false
		}
	}
	return true
}

// emitNativeCalls sends argument fragments as they arrive. The first
// fragment of a call carries its id and name.
func (m *multiplexer) emitNativeCalls(deltas []backend.ToolCallDelta) bool {
	for _, d := range deltas {
		st, seen := m.calls[d.Index]
		if !seen {
			st = &callState{outIndex: m.nextIndex, id: d.ID}
			if st.id == "" {
				st.id = ids.New(ids.ToolCall)
			}
			m.nextIndex++
			m.calls[d.Index] = st
		}

		idx := st.outIndex
		call := types.ToolCall{
			Index:    &idx,
			Function: types.FunctionCall{Arguments: d.Arguments},
		}
		if !seen {
			call.ID = st.id
			call.Type = "function"
			call.Function.Name = d.Name
		}
		if !m.send(types.Delta{ToolCalls: []types.ToolCall{call}}, nil) {
			return false
		}
	}
	return true
}

// finish flushes withheld text and sends the single terminal chunk.
func (m *multiplexer) finish() {
	if m.opts.Filter != nil {
		visible, calls := m.opts.Filter.Flush()
		if !m.emitContent(visible) || !m.emitFallbackCalls(calls) {
			return
		}
	}

	reason := types.FinishStop
	if m.nextIndex > 0 {
		reason = types.FinishToolCalls
	}

	var usage *types.Usage
	if m.opts.Usage != nil {
		usage = m.opts.Usage(Summary{Text: m.final.String(), ToolCalls: m.nextIndex})
	}
	m.sendChunk(m.chunk(types.Delta{}, &reason, usage))
}

func (m *multiplexer) fail(err error) {
	m.opts.Logger.Warn("backend stream failed", "error", err)
	select {
	case m.out <- Event{Err: err}:
	case <-m.ctx.Done():
	}
}

func (m *multiplexer) send(delta types.Delta, finish *string) bool {
	return m.sendChunk(m.chunk(delta, finish, nil))
}

func (m *multiplexer) chunk(delta types.Delta, finish *string, usage *types.Usage) *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:      m.opts.ID,
		Object:  types.ObjectChatCompletionChunk,
		Created: m.opts.Created,
		Model:   m.opts.Model,
		Choices: []types.StreamChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
		Usage: usage,
	}
}

func (m *multiplexer) sendChunk(c *types.ChatCompletionStreamChunk) bool {
	select {
	case m.out <- Event{Chunk: c}:
		if m.opts.Observer != nil {
			m.opts.Observer.ObserveStreamChunk()
		}
		return true
	case <-m.ctx.Done():
		return false
	}
}
