// Package handlers implements the HTTP surface of poebridge.
//
// Every request goes through one Dispatcher. Resolve maps the method and
// path to a closed set of Routes, capturing object ids from the path, and a
// single switch calls the handler for the route. Routes under /v1 require
// the local API key; the root info endpoint and the health probes do not.
//
// Handlers only decode, call one service and encode. Errors of every kind
// are rendered by proxy.WriteError as the OpenAI error envelope:
//
//	{"error":{"message":"No file found with id 'file-x'.","type":"invalid_request_error","code":"file_not_found"}}
//
// Streaming chat and text completions are written as Server-Sent Events
// ending with "data: [DONE]", including when the stream fails midway.
// Embeddings, moderations and token counts are approximations and carry the
// X-Poebridge-Simulated header.
package handlers
