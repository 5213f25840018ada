package gencache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docquery/internal/db"
	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/schema"
)

type mockGenerator struct {
	result    domain.GenerationResult
	err       error
	calls     int
	healthErr error
}

func (m *mockGenerator) Generate(_ context.Context, _ domain.GenerationRequest) (domain.GenerationResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockGenerator) HealthCheck(_ context.Context) error {
	return m.healthErr
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedGenerator(t *testing.T, inner domain.Generator) (*CachedGenerator, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cg := New(inner, ms, time.Hour, nil, zap.NewNop())
	return cg, ms
}

func testRequest(prompt string) domain.GenerationRequest {
	return domain.GenerationRequest{
		System: "system\n\n# Available source\n\n## Name\ndoc1",
		Prompt: prompt,
		Schema: schema.Default(),
	}
}

var testObject = json.RawMessage(`{"relevant":["a"],"irrelevant":false}`)
