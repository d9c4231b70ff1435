package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mercator-hq/poebridge/pkg/simulated"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteSimulated writes an approximated result and marks it with the
// simulated header so clients can tell it apart from a real answer.
func WriteSimulated[T any](w http.ResponseWriter, result simulated.Simulated[T]) error {
	w.Header().Set(simulated.Header, "true")
	return WriteJSON(w, http.StatusOK, result.Value)
}

// SetSSEHeaders prepares w for a Server-Sent Events stream.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SSEWriter writes Server-Sent Events and flushes after each one.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event stream headers and the 200 status.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

// Data writes one "data: <json>" event.
func (s *SSEWriter) Data(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE event: %w", err)
	}
	return s.raw(data)
}

// Error writes an error event carrying the OpenAI envelope for err.
func (s *SSEWriter) Error(err error) error {
	_, body := HandleError(err)
	return s.Data(body)
}

// Done writes the terminal "data: [DONE]" marker.
func (s *SSEWriter) Done() error {
	return s.raw([]byte("[DONE]"))
}

func (s *SSEWriter) raw(data []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Pump drains events into w. unpack splits an event into the value to
// write and a stream error; an error is written as an error event and
// nothing after it is sent. The stream always ends with [DONE]. Pump keeps
// draining after a failure so the producer is never left blocked, and
// returns the first stream or write error.
func Pump[E any](w *SSEWriter, events <-chan E, unpack func(E) (interface{}, error)) error {
	var failure error
	for ev := range events {
		if failure != nil {
			continue
		}
		v, err := unpack(ev)
		if err != nil {
			failure = err
			if werr := w.Error(err); werr != nil {
				failure = werr
			}
			continue
		}
		if err := w.Data(v); err != nil {
			failure = err
		}
	}
	if err := w.Done(); err != nil && failure == nil {
		failure = err
	}
	return failure
}
