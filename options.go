package docquery

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	system         string
	batchSize      int
	maxConcurrency int
	schema         *Schema
	strictFilters  bool

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// QueryOptions are per-query settings. A nil *QueryOptions means no filters.
type QueryOptions struct {
	// Filter narrows the documents before dispatch; all predicates must match.
	Filter []Filter
}

// WithSystem sets the base system prompt prepended to every formatted document.
func WithSystem(system string) Option {
	return optionFunc(func(c *clientConfig) {
		c.system = system
	})
}

// WithBatchSize sets how many documents are dispatched per batch.
// Must be positive. Default: 20.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithMaxConcurrency bounds in-flight generation calls inside a batch.
// Default and upper bound: the batch size.
func WithMaxConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConcurrency = n
	})
}

// WithSchema sets the structured-output schema. Default: DefaultSchema().
func WithSchema(s Schema) Option {
	return optionFunc(func(c *clientConfig) {
		c.schema = &s
	})
}

// WithStrictFilters makes malformed filters fail the query with ErrInvalidFilter
// instead of silently matching nothing.
func WithStrictFilters() Option {
	return optionFunc(func(c *clientConfig) {
		c.strictFilters = true
	})
}

// WithRedisCache caches generation results in Redis or Valkey for ttl.
// Identical (schema, document, prompt) calls are then served without a model call.
// The client must be closed to release the connection.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (query counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
