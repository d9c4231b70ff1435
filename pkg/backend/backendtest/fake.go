// Package backendtest provides an in-memory backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"mercator-hq/poebridge/pkg/backend"
)

// Reply is the scripted answer to one query.
type Reply struct {
	// Events are returned in order, followed by io.EOF.
	Events []backend.Event

	// Err is returned by Query instead of a stream.
	Err error

	// StreamErr is returned by Next after Events are exhausted.
	StreamErr error

	// Block makes the stream wait for this channel to close before each event.
	Block <-chan struct{}
}

// Text returns a reply that streams the given text deltas and a done event.
func Text(deltas ...string) Reply {
	var events []backend.Event
	for _, d := range deltas {
		events = append(events, backend.Event{Kind: backend.EventText, Text: d})
	}
	events = append(events, backend.Event{Kind: backend.EventDone})
	return Reply{Events: events}
}

// Call records one query.
type Call struct {
	Bot     string
	Request *backend.QueryRequest
}

// Upload records one upload.
type Upload struct {
	Name        string
	ContentType string
	Size        int
}

// Backend is a scripted backend.API. Replies are consumed in order; when
// they run out the last reply is repeated.
type Backend struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
	uploads []Upload
	closed  int
}

// New returns a backend that answers with the given replies.
func New(replies ...Reply) *Backend {
	return &Backend{replies: replies}
}

// Query implements backend.Querier.
func (b *Backend) Query(ctx context.Context, bot string, req *backend.QueryRequest) (backend.Stream, error) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Bot: bot, Request: req})
	var reply Reply
	switch {
	case len(b.replies) > 1:
		reply, b.replies = b.replies[0], b.replies[1:]
	case len(b.replies) == 1:
		reply = b.replies[0]
	default:
		reply = Text("")
	}
	b.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &stream{owner: b, reply: reply}, nil
}

// Upload implements backend.Uploader.
func (b *Backend) Upload(ctx context.Context, name, contentType string, data []byte) (backend.Attachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, Upload{Name: name, ContentType: contentType, Size: len(data)})
	return backend.Attachment{
		URL:         fmt.Sprintf("https://files.test/%d/%s", len(b.uploads), name),
		ContentType: contentType,
		Name:        name,
	}, nil
}

// Calls returns the recorded queries.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Uploads returns the recorded uploads.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

// ClosedStreams returns how many streams were closed.
func (b *Backend) ClosedStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type stream struct {
	owner  *Backend
	reply  Reply
	pos    int
	closed bool
}

func (s *stream) Next(ctx context.Context) (backend.Event, error) {
	if s.reply.Block != nil {
		select {
		case <-s.reply.Block:
		case <-ctx.Done():
			return backend.Event{}, &backend.Error{Bot: "fake", Message: "stream cancelled", Cause: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return backend.Event{}, &backend.Error{Bot: "fake", Message: "stream cancelled", Cause: err}
	}
	if s.pos < len(s.reply.Events) {
		ev := s.reply.Events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.reply.StreamErr != nil {
		return backend.Event{}, s.reply.StreamErr
	}
	return backend.Event{}, io.EOF
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.owner.mu.Lock()
	s.owner.closed++
	s.owner.mu.Unlock()
	return nil
}
