package docquery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/document"
	"github.com/kailas-cloud/docquery/internal/domain/query/filter"
	"github.com/kailas-cloud/docquery/internal/domain/query/result"
	"github.com/kailas-cloud/docquery/internal/domain/schema"
)

type (
	// Document is a named unit of content with optional metadata.
	Document = document.Document
	// Value is a metadata value: a string or a number.
	Value = document.Value
	// Filter is a single metadata predicate. All filters of a query must match.
	Filter = filter.Filter
	// Operator names a filter comparison.
	Operator = filter.Operator
	// Schema describes the JSON object each generation call must return.
	Schema = schema.Schema
	// Usage accumulates generation calls and tokens for queries run with its context.
	Usage = domain.GenerationUsage
	// Generator produces one structured object per call.
	Generator = domain.Generator
	// GenerationRequest is a single structured generation call.
	GenerationRequest = domain.GenerationRequest
	// GenerationResult carries the structured object and token usage.
	GenerationResult = domain.GenerationResult
)

// QueryResult pairs a typed payload with the document it was generated from.
type QueryResult[T any] = result.Result[T]

// Relevance is the payload shape of DefaultSchema.
type Relevance[T any] = result.Relevance[T]

// Filter operators.
const (
	Equals             = filter.Equals
	NotEquals          = filter.NotEquals
	Contains           = filter.Contains
	StartsWith         = filter.StartsWith
	EndsWith           = filter.EndsWith
	Regex              = filter.Regex
	GreaterThan        = filter.GreaterThan
	LessThan           = filter.LessThan
	GreaterThanOrEqual = filter.GreaterThanOrEqual
	LessThanOrEqual    = filter.LessThanOrEqual
)

// String creates a string metadata value.
func String(s string) Value { return document.String(s) }

// Number creates a numeric metadata value.
func Number(f float64) Value { return document.Number(f) }

// NewDocument creates a Document. The name is required.
func NewDocument(name, content string, metadata map[string]Value) (Document, error) {
	d, err := document.New(name, content, metadata)
	if err != nil {
		return Document{}, fmt.Errorf("docquery: %w", err)
	}
	return d, nil
}

// NewFilter creates a Filter. An empty operator means Equals.
func NewFilter(key string, value Value, op Operator) (Filter, error) {
	f, err := filter.New(key, value, op)
	if err != nil {
		return Filter{}, fmt.Errorf("docquery: %w", err)
	}
	return f, nil
}

// NewSchema creates a Schema from a JSON schema object.
func NewSchema(name, description string, definition json.RawMessage, strict bool) (Schema, error) {
	s, err := schema.New(name, description, definition, strict)
	if err != nil {
		return Schema{}, fmt.Errorf("docquery: %w: %w", ErrInvalidSchema, err)
	}
	return s, nil
}

// DefaultSchema returns the relevance schema: {"relevant": [string], "irrelevant": bool}.
func DefaultSchema() Schema { return schema.Default() }

// ContextWithUsage returns a context that collects generation usage for queries run with it.
func ContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	return domain.NewContextWithUsage(ctx)
}
