package types

// ErrorResponse is the body of every non-2xx response. OpenAI SDKs parse
// this shape to raise typed exceptions.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Message string `json:"message"`

	// Type is one of the ErrorType constants.
	Type string `json:"type"`

	// Param names the offending request field, when there is one.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable reason such as "missing_field".
	Code string `json:"code,omitempty"`
}

// Values of ErrorDetail.Type. Client mistakes, including a rejected local
// key, are all reported as invalid_request_error.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeServerError    = "server_error"
	ErrorTypeBadGateway     = "bad_gateway"
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Values of ErrorDetail.Code.
const (
	CodeMissingAPIKey          = "missing_api_key"
	CodeMissingField           = "missing_field"
	CodeInvalidValue           = "invalid_value"
	CodeInvalidJSON            = "invalid_json"
	CodeUnsupportedContentType = "unsupported_content_type"
	CodeBackendError           = "backend_error"
	CodeInternalError          = "internal_error"
)

// NewErrorResponse builds an envelope from its four fields.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{
		Message: message,
		Type:    errorType,
		Param:   param,
		Code:    code,
	}}
}

// NewInvalidRequestError is a 400-class envelope.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewServerError is a 500 envelope. The message must not leak internals.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError is a 502 envelope for backend failures.
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeBackendError)
}
