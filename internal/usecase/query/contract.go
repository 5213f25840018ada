package query

import (
	"context"

	"github.com/kailas-cloud/docquery/internal/domain"
)

// Generator produces one structured object per call.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
