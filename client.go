package docquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docquery/internal/db"
	dbRedis "github.com/kailas-cloud/docquery/internal/db/redis"
	"github.com/kailas-cloud/docquery/internal/repository/gencache"
	queryuc "github.com/kailas-cloud/docquery/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

// Client runs queries against documents. It is immutable after construction
// and safe for concurrent use.
type Client[T any] struct {
	svc   *queryuc.Service[T]
	store db.Store
	obs   *observer
}

// New creates a Client that decodes every structured response into T.
func New[T any](gen Generator, opts ...Option) (*Client[T], error) {
	if gen == nil {
		return nil, errors.New("docquery: generator is required")
	}

	cfg := &clientConfig{batchSize: queryuc.DefaultBatchSize}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.batchSize <= 0 {
		return nil, fmt.Errorf("docquery: batch size must be positive, got %d", cfg.batchSize)
	}
	if cfg.maxConcurrency < 0 {
		return nil, fmt.Errorf("docquery: max concurrency must not be negative, got %d", cfg.maxConcurrency)
	}
	s := DefaultSchema()
	if cfg.schema != nil {
		s = *cfg.schema
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		store, err = createStore(cfg)
		if err != nil {
			return nil, err
		}
		gen = gencache.New(gen, store, cfg.cacheTTL, nil, zap.NewNop())
	}

	svc, err := queryuc.New[T](gen, queryuc.Config{
		System:         cfg.system,
		BatchSize:      cfg.batchSize,
		MaxConcurrency: cfg.maxConcurrency,
		Schema:         s,
		StrictFilters:  cfg.strictFilters,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("docquery: %w", err)
	}

	return &Client[T]{svc: svc, store: store, obs: obs}, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.cacheAddrs,
		Password: cfg.cachePassword,
	})
	if err != nil {
		return nil, fmt.Errorf("docquery: create cache store: %w", err)
	}

	if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("docquery: cache not ready: %w", err)
	}
	return s, nil
}

// Query filters docs, asks the model the prompt once per surviving document
// and returns the typed answers in document order.
//
// Any failing call aborts the query with a *QueryError. An invalid filter in
// strict mode fails with ErrInvalidFilter before any call is made.
func (c *Client[T]) Query(
	ctx context.Context, prompt string, docs []Document, opts *QueryOptions,
) ([]QueryResult[T], error) {
	var o queryuc.Options
	if opts != nil {
		o.Filters = opts.Filter
	}

	start := time.Now()
	results, err := c.svc.Query(ctx, prompt, docs, o)
	c.obs.observe(start, len(docs), len(results), err)
	if err != nil {
		return nil, err //nolint:wrapcheck // QueryError and ErrInvalidFilter are part of the API
	}
	return results, nil
}

// BatchSize returns the effective batch size.
func (c *Client[T]) BatchSize() int { return c.svc.BatchSize() }

// MaxConcurrency returns the effective bound on in-flight generation calls.
func (c *Client[T]) MaxConcurrency() int { return c.svc.MaxConcurrency() }

// Close releases the cache connection, if any.
func (c *Client[T]) Close() {
	if c.store != nil {
		c.store.Close()
	}
}
