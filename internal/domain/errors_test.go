package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestQueryError_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("generate for document %q: %w", "doc1", ErrRateLimited)
	err := NewQueryError(cause)

	if !errors.Is(err, ErrQueryFailed) {
		t.Error("errors.Is(err, ErrQueryFailed) = false")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("cause is not reachable through Unwrap")
	}
	if !strings.HasPrefix(err.Error(), "query failed: ") {
		t.Errorf("Error() = %q", err.Error())
	}

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatal("errors.As(*QueryError) = false")
	}
	if qe.Cause != cause {
		t.Error("Cause mismatch")
	}
}

func TestQueryError_NotOtherSentinels(t *testing.T) {
	err := NewQueryError(errors.New("boom"))
	if errors.Is(err, ErrInvalidFilter) {
		t.Error("QueryError must not match unrelated sentinels")
	}
}

func TestGenerationUsage_NilSafe(t *testing.T) {
	var u *GenerationUsage
	u.Add(GenerationResult{TotalTokens: 5})

	if UsageFromContext(context.Background()) != nil {
		t.Error("expected nil usage on bare context")
	}
}

func TestGenerationUsage_Concurrent(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != u {
		t.Fatal("UsageFromContext returned a different collector")
	}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).Add(GenerationResult{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3})
		}()
	}
	wg.Wait()

	if u.Calls() != 50 {
		t.Errorf("Calls() = %d", u.Calls())
	}
	if u.PromptTokens() != 100 || u.CompletionTokens() != 50 || u.TotalTokens() != 150 {
		t.Errorf("tokens = %d/%d/%d", u.PromptTokens(), u.CompletionTokens(), u.TotalTokens())
	}
}
