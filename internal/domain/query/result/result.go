package result

import "github.com/kailas-cloud/docquery/internal/domain/document"

// Result pairs the structured payload generated for one document with that document.
type Result[T any] struct {
	Payload  T                 `json:"payload"`
	Document document.Document `json:"document"`
}

// New creates a Result.
func New[T any](payload T, doc document.Document) Result[T] {
	return Result[T]{Payload: payload, Document: doc}
}

// Relevance is the payload shape of the default schema.
type Relevance[T any] struct {
	Relevant   []T  `json:"relevant"`
	Irrelevant bool `json:"irrelevant,omitempty"`
}

// Payloads extracts the payloads in result order.
func Payloads[T any](results []Result[T]) []T {
	out := make([]T, len(results))
	for i, r := range results {
		out[i] = r.Payload
	}
	return out
}
