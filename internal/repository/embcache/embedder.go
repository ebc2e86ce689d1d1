package embcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/domain"
)

// tier is the consumer interface for the embedding cache (ISP).
type tier interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// CachedEmbedder caches query embeddings in the cache tier under qe: keys.
type CachedEmbedder struct {
	inner      domain.Embedder
	tier       tier
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. model is part of the key so switching
// models never serves stale vectors. ttl <= 0 uses the tier defaults.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	t tier,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		tier:       t,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cache.EmbeddingKey(c.model, text)

	if data, ok := c.tier.Get(ctx, key); ok {
		vec, err := bytesToVector(data)
		if err == nil && len(vec) > 0 {
			c.incCache("hit")
			return domain.EmbeddingResult{Embedding: vec}, nil
		}
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	if !c.tier.Put(ctx, key, vectorToCacheBytes(result.Embedding), c.ttl) {
		c.logger.Debug("Embedding not cached", zap.String("key", key))
	}
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
