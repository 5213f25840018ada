package domain

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/docquery/internal/domain/schema"
)

// Generator is the structured generation contract shared between layers:
// given a system prompt, a user prompt and a schema it returns an object
// conforming to the schema, or fails.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// HealthChecker verifies generation provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GenerationRequest is a single structured generation call.
type GenerationRequest struct {
	System string
	Prompt string
	Schema schema.Schema
}

// GenerationResult carries the structured object and token usage through the decorator chain.
type GenerationResult struct {
	Object           json.RawMessage
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
