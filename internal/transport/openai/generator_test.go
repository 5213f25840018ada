package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/schema"
	"github.com/kailas-cloud/docquery/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterGenerationMetrics()
	os.Exit(m.Run())
}

// chatRequest mirrors the fields of the chat completion request we assert on.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string          `json:"name"`
			Schema json.RawMessage `json:"schema"`
			Strict bool            `json:"strict"`
		} `json:"json_schema"`
	} `json:"response_format"`
	MaxCompletionTokens int `json:"max_completion_tokens"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 12, "total_tokens": 42},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestGenerator(url string, mutate ...func(*Config)) *Generator {
	cfg := &Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		MaxTokens:  256,
		Provider:   "test",
		RetryDelay: time.Millisecond,
		Logger:     zap.NewNop(),
	}
	for _, m := range mutate {
		m(cfg)
	}
	return NewGenerator(cfg)
}

func testRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		System: "You extract facts.\n\n# Available source\n\n## Name\ndoc1",
		Prompt: "What is the revenue?",
		Schema: schema.Default(),
	}
}

func TestGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("messages = %+v", req.Messages)
		}
		if !strings.HasPrefix(req.Messages[0].Content, "You extract facts.") {
			t.Errorf("system = %q", req.Messages[0].Content)
		}
		if req.Messages[1].Content != "What is the revenue?" {
			t.Errorf("user = %q", req.Messages[1].Content)
		}
		if req.ResponseFormat.Type != "json_schema" {
			t.Errorf("response_format.type = %q", req.ResponseFormat.Type)
		}
		if req.ResponseFormat.JSONSchema.Name != schema.DefaultName || !req.ResponseFormat.JSONSchema.Strict {
			t.Errorf("json_schema = %+v", req.ResponseFormat.JSONSchema)
		}
		if !strings.Contains(string(req.ResponseFormat.JSONSchema.Schema), `"relevant"`) {
			t.Errorf("schema = %s", req.ResponseFormat.JSONSchema.Schema)
		}
		if req.MaxCompletionTokens != 256 {
			t.Errorf("max_completion_tokens = %d", req.MaxCompletionTokens)
		}

		writeJSON(w, http.StatusOK, chatResponse(`{"relevant":["$10M"],"irrelevant":false}`))
	}))
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if string(res.Object) != `{"relevant":["$10M"],"irrelevant":false}` {
		t.Errorf("Object = %s", res.Object)
	}
	if res.PromptTokens != 30 || res.CompletionTokens != 12 || res.TotalTokens != 42 {
		t.Errorf("usage = %+v", res)
	}
}

func TestGenerator_InvalidJSONContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, chatResponse(`{"relevant": [`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrGenerationProviderError) {
		t.Fatalf("expected ErrGenerationProviderError, got %v", err)
	}
}

func TestGenerator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := chatResponse("{}")
		resp["choices"] = []any{}
		writeJSON(w, http.StatusOK, resp)
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrGenerationProviderError) {
		t.Fatalf("expected ErrGenerationProviderError, got %v", err)
	}
}

func TestGenerator_Refusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := chatResponse("")
		resp["choices"] = []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": "", "refusal": "cannot help"},
			"finish_reason": "stop",
		}}
		writeJSON(w, http.StatusOK, resp)
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "cannot help") {
		t.Fatalf("expected refusal error, got %v", err)
	}
}

func TestGenerator_RateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, retries are disabled by default", calls.Load())
	}
}

func TestGenerator_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": map[string]any{"message": "overloaded", "type": "server_error"},
			})
			return
		}
		writeJSON(w, http.StatusOK, chatResponse(`{"relevant":[],"irrelevant":true}`))
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, func(c *Config) { c.MaxAttempts = 3 })
	res, err := gen.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if !strings.Contains(string(res.Object), `"irrelevant":true`) {
		t.Errorf("Object = %s", res.Object)
	}
}

func TestGenerator_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "invalid schema", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, func(c *Config) { c.MaxAttempts = 5 })
	_, err := gen.Generate(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrGenerationProviderError) {
		t.Fatalf("expected ErrGenerationProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid schema") {
		t.Errorf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGenerator_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, chatResponse(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGenerator(server.URL).Generate(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerator_RateLimiterHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, chatResponse(`{}`))
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, func(c *Config) {
		c.RequestsPerSecond = 0.001
		c.Burst = 1
	})

	// First call consumes the burst token.
	if _, err := gen.Generate(context.Background(), testRequest()); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := gen.Generate(ctx, testRequest())
	if err == nil || !strings.Contains(err.Error(), "rate limiter") {
		t.Fatalf("expected rate limiter error, got %v", err)
	}
}

func TestGenerator_RetriesWaitForRateLimiter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, func(c *Config) {
		c.RequestsPerSecond = 0.001
		c.Burst = 1
		c.MaxAttempts = 3
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The burst token covers the first attempt only; the retry must block on the limiter.
	_, err := gen.Generate(ctx, testRequest())
	if err == nil || !strings.Contains(err.Error(), "rate limiter") {
		t.Fatalf("expected rate limiter error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGenerator_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": []any{}})
	}))
	defer server.Close()

	if err := newTestGenerator(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"model not found"}`)); got != "model not found" {
		t.Errorf("extractDetail = %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail = %q", got)
	}
}
