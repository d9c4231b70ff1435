package backend

import (
	"context"
	"errors"
	"io"
	"sort"
)

// ToolCall is a fully assembled native tool call.
type ToolCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Result is a whole bot response.
type Result struct {
	// Text is the final response text after all text and replace events.
	Text string

	// ToolCalls are the native tool calls in index order.
	ToolCalls []ToolCall

	// Attachments are files the bot produced, in arrival order.
	Attachments []Attachment
}

// Collect drains a stream into a Result and closes it.
func Collect(ctx context.Context, s Stream) (*Result, error) {
	defer s.Close()

	var (
		res   Result
		calls = make(map[int]*ToolCall)
	)
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch ev.Kind {
		case EventText:
			res.Text += ev.Text
		case EventReplace:
			res.Text = ev.Text
		case EventJSON:
			for _, d := range ev.ToolCalls {
				MergeToolCall(calls, d)
			}
		case EventFile:
			if ev.Attachment != nil {
				res.Attachments = append(res.Attachments, *ev.Attachment)
			}
		}
	}

	res.ToolCalls = SortedToolCalls(calls)
	return &res, nil
}

// Ask sends a query and collects the whole response.
func Ask(ctx context.Context, q Querier, bot string, req *QueryRequest) (*Result, error) {
	stream, err := q.Query(ctx, bot, req)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, stream)
}

// MergeToolCall folds a fragment into the call it belongs to.
func MergeToolCall(calls map[int]*ToolCall, d ToolCallDelta) *ToolCall {
	call, ok := calls[d.Index]
	if !ok {
		call = &ToolCall{Index: d.Index}
		calls[d.Index] = call
	}
	if d.ID != "" {
		call.ID = d.ID
	}
	if d.Name != "" {
		call.Name = d.Name
	}
	call.Arguments += d.Arguments
	return call
}

// SortedToolCalls returns the calls ordered by index.
func SortedToolCalls(calls map[int]*ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
