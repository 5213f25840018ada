package docquery

import (
	"time"

	openaiGen "github.com/kailas-cloud/docquery/internal/transport/openai"
)

// OpenAIConfig configures the bundled OpenAI-compatible generator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // default: https://api.openai.com/v1
	Model       string
	Temperature float32
	MaxTokens   int // 0 = provider default
	Timeout     time.Duration

	// RequestsPerSecond limits outbound calls; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int

	// MaxAttempts bounds retries on 429 and 5xx; 0 or 1 means no retry.
	MaxAttempts uint
	RetryDelay  time.Duration
}

// NewOpenAIGenerator creates a Generator backed by any OpenAI-compatible
// chat completions API with JSON schema response format support.
func NewOpenAIGenerator(cfg OpenAIConfig) Generator {
	return openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		Provider:          "openai",
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxAttempts:       cfg.MaxAttempts,
		RetryDelay:        cfg.RetryDelay,
	})
}
