package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/metrics"
)

const defaultRetryDelay = 500 * time.Millisecond

// Generator is a structured generation provider using the OpenAI-compatible
// chat completions API with JSON schema response format.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	provider    string
	limiter     *rate.Limiter
	maxAttempts uint
	retryDelay  time.Duration
	logger      *zap.Logger
}

// Config holds the generation provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int // 0 = provider default
	Provider    string
	Timeout     time.Duration

	// RequestsPerSecond limits outbound calls; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int

	// MaxAttempts bounds transport retries on 429/5xx; 0 or 1 means no retry.
	MaxAttempts uint
	RetryDelay  time.Duration

	Logger *zap.Logger
}

// NewGenerator creates an OpenAI-compatible structured generation provider.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		provider:    cfg.Provider,
		limiter:     limiter,
		maxAttempts: max(cfg.MaxAttempts, 1),
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator. The system prompt and user prompt are
// sent as two chat messages; the schema is passed as a JSON schema response format.
// Every attempt, retries included, waits for the rate limiter.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	chatReq := g.buildRequest(req)

	var (
		resp       openai.ChatCompletionResponse
		limiterErr error
	)
	err := retry.Do(
		func() error {
			if g.limiter != nil {
				if limiterErr = g.limiter.Wait(ctx); limiterErr != nil {
					return limiterErr //nolint:wrapcheck // wrapped below
				}
			}
			var callErr error
			resp, callErr = g.call(ctx, chatReq)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(g.maxAttempts),
		retry.Delay(g.retryDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("Retrying generation request",
				zap.Uint("attempt", n+1),
				zap.String("model", g.model),
				zap.Error(err),
			)
		}),
	)
	if limiterErr != nil {
		return domain.GenerationResult{}, fmt.Errorf("rate limiter: %w", limiterErr)
	}
	if err != nil {
		return domain.GenerationResult{}, parseAPIError(err)
	}

	return g.toResult(resp)
}

func (g *Generator) buildRequest(req domain.GenerationRequest) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: g.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name(),
				Description: req.Schema.Description(),
				Schema:      req.Schema.Definition(),
				Strict:      req.Schema.Strict(),
			},
		},
	}
	if g.maxTokens > 0 {
		chatReq.MaxCompletionTokens = g.maxTokens
	}
	return chatReq
}

// call performs one API round trip and records transport-level metrics.
func (g *Generator) call(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(g.provider, g.model, "api_error").Inc()
		return openai.ChatCompletionResponse{}, err //nolint:wrapcheck // mapped by parseAPIError
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "completion").
			Add(float64(resp.Usage.CompletionTokens))
	}
	return resp, nil
}

// toResult validates the response and extracts the structured object.
func (g *Generator) toResult(resp openai.ChatCompletionResponse) (domain.GenerationResult, error) {
	if len(resp.Choices) == 0 {
		metrics.GenerationErrorsTotal.WithLabelValues(g.provider, g.model, "empty_response").Inc()
		return domain.GenerationResult{}, fmt.Errorf("empty generation response: %w", domain.ErrGenerationProviderError)
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		metrics.GenerationErrorsTotal.WithLabelValues(g.provider, g.model, "refusal").Inc()
		return domain.GenerationResult{}, fmt.Errorf("model refused: %s: %w", msg.Refusal, domain.ErrGenerationProviderError)
	}
	if !json.Valid([]byte(msg.Content)) {
		metrics.GenerationErrorsTotal.WithLabelValues(g.provider, g.model, "invalid_json").Inc()
		return domain.GenerationResult{}, fmt.Errorf("model returned invalid JSON (finish reason %q): %w",
			resp.Choices[0].FinishReason, domain.ErrGenerationProviderError)
	}

	return domain.GenerationResult{
		Object:           json.RawMessage(msg.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// isRetryable reports whether a failed call may succeed on retry (429 and 5xx).
func isRetryable(err error) bool {
	status := statusCode(err)
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// parseAPIError extracts a human-readable error from the API response.
// 429 maps to domain.ErrRateLimited; everything else to domain.ErrGenerationProviderError.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("generation request: %w", err)
	}

	wrap := domain.ErrGenerationProviderError
	if statusCode(err) == http.StatusTooManyRequests {
		wrap = domain.ErrRateLimited
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("generation API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("generation API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("generation request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
