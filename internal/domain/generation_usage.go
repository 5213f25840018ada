package domain

import (
	"context"
	"sync"
)

type generationUsageKey struct{}

// GenerationUsage collects token usage for a single query.
// The handler puts a pointer into the context before calling the service;
// concurrent generation calls add to it; the handler reads it afterwards.
type GenerationUsage struct {
	mu               sync.Mutex
	calls            int
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *GenerationUsage) {
	u := &GenerationUsage{}
	return context.WithValue(ctx, generationUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *GenerationUsage {
	u, _ := ctx.Value(generationUsageKey{}).(*GenerationUsage)
	return u
}

// Add records one generation call. Safe on a nil receiver.
func (u *GenerationUsage) Add(r GenerationResult) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.promptTokens += r.PromptTokens
	u.completionTokens += r.CompletionTokens
	u.totalTokens += r.TotalTokens
}

// Calls returns the number of recorded generation calls.
func (u *GenerationUsage) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// PromptTokens returns the accumulated prompt tokens.
func (u *GenerationUsage) PromptTokens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.promptTokens
}

// CompletionTokens returns the accumulated completion tokens.
func (u *GenerationUsage) CompletionTokens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completionTokens
}

// TotalTokens returns the accumulated total tokens.
func (u *GenerationUsage) TotalTokens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}
