// Package proxy holds the HTTP plumbing shared by the API handlers: request
// decoding, the error envelope and server-sent event output.
//
// # Requests
//
// DecodeJSON reads a bounded JSON body and reports malformed input as a
// validation error with code invalid_json. ParseChatRequest additionally
// accepts multipart/form-data, where the JSON travels in a "request" field and
// each "files" part is registered with the file registry and appended to the
// last user message as a file content part.
//
// # Errors
//
// Handlers return errors and never build envelopes themselves. HandleError
// maps them to a status and an ErrorResponse:
//
//   - *apierror.Error uses its kind (400, 401, 404, 413, 415, 502, ...)
//   - *backend.Error becomes 502 with a fixed message
//   - context.DeadlineExceeded becomes 504
//   - anything else becomes 500
//
// Upstream messages never reach the client verbatim; they are logged instead.
//
// # Streaming
//
// SSEWriter frames each value as "data: <json>\n\n" and flushes it. Pump drains
// an event channel into the writer; a failure mid-stream is sent as an error
// event followed by "data: [DONE]", since the 200 status is already on the
// wire:
//
//	err := proxy.Pump(proxy.NewSSEWriter(w), events, func(ev stream.Event) (interface{}, error) {
//		return ev.Chunk, ev.Err
//	})
package proxy
