// Package types defines the OpenAI-compatible wire types served by poebridge.
//
// # Core Types
//
// Request types:
//   - ChatCompletionRequest: body of /v1/chat/completions
//   - Message: one conversation turn; Content accepts a string or a part array
//   - CompletionRequest: legacy /v1/completions, with a string or list prompt
//   - EmbeddingRequest, ModerationRequest, TokenCountRequest
//   - ImageGenerationRequest: shared by generations, edits and variations
//
// Response types:
//   - ChatCompletionResponse and ChatCompletionStreamChunk
//   - CompletionResponse
//   - Model and ModelList
//   - EmbeddingResponse, ModerationResponse, TokenCountResponse
//   - ImageResponse
//   - FileObject, FileList and DeletedObject
//
// Error types:
//   - ErrorResponse: the {"error": {...}} envelope
//   - ErrorDetail: message, type, param and code
//
// # Content
//
// Content keeps whether a message arrived as a plain string or as parts, so a
// request round-trips unchanged:
//
//	{"role": "user", "content": "Hello!"}
//	{"role": "user", "content": [{"type": "text", "text": "Hello!"}]}
//
// Standard OpenAI SDKs work against the server by pointing their base URL at
// it:
//
//	client = OpenAI(base_url="http://localhost:8080/v1", api_key="sk-local-...")
package types
