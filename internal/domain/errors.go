package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryFailed signals that a query could not be completed.
	ErrQueryFailed = errors.New("query failed")
	// ErrInvalidFilter signals a malformed metadata filter (strict mode only).
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidSchema signals an invalid structured-output schema.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrInvalidRequest signals an invalid query request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrGenerationProviderError signals a generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
)

// QueryError is the single failure surfaced by a query: it wraps the first
// generation error observed during fan-out.
type QueryError struct {
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", ErrQueryFailed.Error(), e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// Is reports ErrQueryFailed as matching, in addition to the wrapped cause.
func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }

// NewQueryError wraps cause into a QueryError.
func NewQueryError(cause error) error {
	return &QueryError{Cause: cause}
}
