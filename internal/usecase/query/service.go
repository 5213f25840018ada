package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docquery/internal/domain"
	"github.com/kailas-cloud/docquery/internal/domain/document"
	"github.com/kailas-cloud/docquery/internal/domain/query/filter"
	"github.com/kailas-cloud/docquery/internal/domain/query/result"
	"github.com/kailas-cloud/docquery/internal/domain/schema"
	logpkg "github.com/kailas-cloud/docquery/internal/logger"
)

// DefaultBatchSize is the number of documents dispatched per batch when none is configured.
const DefaultBatchSize = 20

// Config holds the immutable dispatch settings.
type Config struct {
	System         string
	BatchSize      int // 0 = DefaultBatchSize
	MaxConcurrency int // 0 = BatchSize
	Schema         schema.Schema
	StrictFilters  bool
}

// Options are per-query settings.
type Options struct {
	Filters []filter.Filter
}

// Service runs the query pipeline: filter, partition, one generation call
// per document, ordered aggregation.
//
// Batches run one after another. Calls inside a batch run concurrently,
// at most MaxConcurrency at a time. The first failing call cancels the
// rest of its batch and the query returns a *domain.QueryError without
// partial results.
type Service[T any] struct {
	gen            Generator
	filters        *filter.Engine
	system         string
	batchSize      int
	maxConcurrency int
	schema         schema.Schema
}

// New creates a query service.
func New[T any](gen Generator, cfg Config) (*Service[T], error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.MaxConcurrency < 0 {
		return nil, fmt.Errorf("max concurrency must be positive, got %d", cfg.MaxConcurrency)
	}
	if cfg.Schema.IsZero() {
		return nil, fmt.Errorf("schema is required: %w", domain.ErrInvalidSchema)
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency == 0 || maxConcurrency > batchSize {
		maxConcurrency = batchSize
	}

	engine := filter.NewEngine()
	if cfg.StrictFilters {
		engine = filter.NewStrictEngine()
	}

	return &Service[T]{
		gen:            gen,
		filters:        engine,
		system:         cfg.System,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
		schema:         cfg.Schema,
	}, nil
}

// BatchSize returns the effective batch size.
func (s *Service[T]) BatchSize() int { return s.batchSize }

// MaxConcurrency returns the effective bound on in-flight generation calls.
func (s *Service[T]) MaxConcurrency() int { return s.maxConcurrency }

// Query filters docs, generates one structured payload per surviving document
// and returns the results in filtered order.
func (s *Service[T]) Query(
	ctx context.Context, prompt string, docs []document.Document, opts Options,
) ([]result.Result[T], error) {
	logger := logpkg.FromContext(ctx)
	start := time.Now()

	filtered, err := s.filters.Apply(docs, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("filter documents: %w", err)
	}

	results := make([]result.Result[T], len(filtered))
	if len(filtered) == 0 {
		logger.Debug("No documents left after filtering",
			zap.Int("documents", len(docs)),
			zap.Int("filters", len(opts.Filters)),
		)
		return results, nil
	}

	batches := partition(filtered, s.batchSize)
	offset := 0
	for i, batch := range batches {
		if err := s.runBatch(ctx, prompt, batch, results[offset:offset+len(batch)]); err != nil {
			logger.Warn("Query failed",
				zap.Int("batch", i),
				zap.Int("batches", len(batches)),
				zap.Error(err),
			)
			return nil, domain.NewQueryError(err)
		}
		offset += len(batch)
	}

	logger.Debug("Query completed",
		zap.Int("documents", len(docs)),
		zap.Int("filtered", len(filtered)),
		zap.Int("batches", len(batches)),
		zap.Duration("latency", time.Since(start)),
	)

	return results, nil
}

// runBatch generates results for every document of the batch into out,
// which has the same length as batch.
func (s *Service[T]) runBatch(
	ctx context.Context, prompt string, batch []document.Document, out []result.Result[T],
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i := range batch {
		g.Go(func() error {
			r, err := s.generate(gctx, prompt, batch[i])
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck // already wrapped with document name
	}
	return nil
}

func (s *Service[T]) generate(
	ctx context.Context, prompt string, doc document.Document,
) (result.Result[T], error) {
	if err := ctx.Err(); err != nil {
		return result.Result[T]{}, fmt.Errorf("document %q: %w", doc.Name, err)
	}

	gen, err := s.gen.Generate(ctx, domain.GenerationRequest{
		System: composeSystem(s.system, doc),
		Prompt: prompt,
		Schema: s.schema,
	})
	if err != nil {
		return result.Result[T]{}, fmt.Errorf("generate for document %q: %w", doc.Name, err)
	}

	domain.UsageFromContext(ctx).Add(gen)

	var payload T
	if err := json.Unmarshal(gen.Object, &payload); err != nil {
		return result.Result[T]{}, fmt.Errorf("decode payload for document %q: %w", doc.Name, err)
	}

	return result.New(payload, doc), nil
}
