package chi

import (
	"encoding/json"

	"github.com/kailas-cloud/docquery/internal/domain/document"
	"github.com/kailas-cloud/docquery/internal/domain/query/filter"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeInvalidFilter    ErrorCode = "invalid_filter"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeQueryFailed      ErrorCode = "query_failed"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Prompt    string              `json:"prompt"`
	Documents []document.Document `json:"documents"`
	Filter    []filter.Filter     `json:"filter,omitempty"`
}

// QueryResultItem pairs a generated payload with its source document.
type QueryResultItem struct {
	Payload  json.RawMessage   `json:"payload"`
	Document document.Document `json:"document"`
}

// QueryResponse is the body of a successful POST /v1/query.
type QueryResponse struct {
	Results []QueryResultItem `json:"results"`
	Usage   UsageResponse     `json:"usage"`
}

// UsageResponse reports the generation cost of one query.
type UsageResponse struct {
	Calls            int `json:"calls"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}
