package gencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docquery/internal/db"
	"github.com/kailas-cloud/docquery/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "gen_cache:"

// store is the consumer interface for the generation cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedGenerator caches structured generation results in a key-value store.
type CachedGenerator struct {
	inner      domain.Generator
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
// A non-positive ttl stores entries without expiry.
func New(
	inner domain.Generator,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGenerator{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Generate returns a cached object or calls the inner generator.
// Cache hit: token counts are zero (no real tokens consumed).
// Cache miss: full GenerationResult from inner.
func (c *CachedGenerator) Generate(
	ctx context.Context, req domain.GenerationRequest,
) (domain.GenerationResult, error) {
	key := cacheKey(req)

	if obj, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.GenerationResult{Object: obj}, nil
	}

	c.incCache("miss")

	res, err := c.inner.Generate(ctx, req)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}

	c.putToCache(ctx, key, res.Object)
	return res, nil
}

// HealthCheck delegates to the inner generator when it supports health checks.
func (c *CachedGenerator) HealthCheck(ctx context.Context) error {
	hc, ok := c.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("inner generator: %w", err)
	}
	return nil
}

func (c *CachedGenerator) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes every input that shapes the response. Fields are
// separated by NUL so adjacent values cannot run into each other.
func cacheKey(req domain.GenerationRequest) string {
	h := sha256.New()
	strict := []byte{'0'}
	if req.Schema.Strict() {
		strict[0] = '1'
	}
	for _, part := range [][]byte{
		[]byte(req.Schema.Name()),
		[]byte(req.Schema.Description()),
		req.Schema.Definition(),
		strict,
		[]byte(req.System),
		[]byte(req.Prompt),
	} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedGenerator) getFromCache(ctx context.Context, key string) (json.RawMessage, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached generation", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	if !json.Valid(data) {
		c.logger.Warn("Discarding invalid cached generation", zap.String("key", key))
		return nil, false
	}

	return json.RawMessage(data), true
}

func (c *CachedGenerator) putToCache(ctx context.Context, key string, obj json.RawMessage) {
	if len(obj) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, obj, c.ttl); err != nil {
		c.logger.Warn("Failed to cache generation", zap.String("key", key), zap.Error(err))
	}
}
