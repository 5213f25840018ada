package docquery

import "github.com/kailas-cloud/docquery/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrQueryFailed             = domain.ErrQueryFailed
	ErrInvalidFilter           = domain.ErrInvalidFilter
	ErrInvalidSchema           = domain.ErrInvalidSchema
	ErrRateLimited             = domain.ErrRateLimited
	ErrGenerationProviderError = domain.ErrGenerationProviderError
)

// QueryError is returned when any generation call of a query fails.
// Unwrap yields the first observed failure.
type QueryError = domain.QueryError
