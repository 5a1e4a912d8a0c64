package chi

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeInvalidToolInput  ErrorCode = "invalid_tool_input"
	ErrorCodeToolNotConfigured ErrorCode = "tool_not_configured"
	ErrorCodeAgentError        ErrorCode = "agent_error"
	ErrorCodeAgentTimeout      ErrorCode = "agent_timeout"
	ErrorCodeUpstreamError     ErrorCode = "upstream_error"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-envelope error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
