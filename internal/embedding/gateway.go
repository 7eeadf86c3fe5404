// Package embedding wraps the external embedding provider behind a
// content-hash cache so repeated queries do not cost provider calls.
package embedding

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

	"github.com/tramitalabs/convoca/internal/cache"
)

const cacheKeyPrefix = "convoca:emb:"

// Embedder is the narrow contract of the external embedding provider.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Gateway caches embeddings by content hash. It never retries the provider;
// retry policy belongs to the caller.
type Gateway struct {
	inner      Embedder
	store      cache.Store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewGateway creates a caching gateway over the given provider.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"); nil disables it.
func NewGateway(inner Embedder, store cache.Store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		inner:      inner,
		store:      store,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns the vector for text, from cache when a live entry exists.
// The cache is written on provider success only.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := g.cacheKey(text)

	if vec, ok := g.getFromCache(ctx, key); ok {
		g.incCache("hit")
		return vec, nil
	}
	g.incCache("miss")

	vec, err := g.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	g.putToCache(ctx, key, vec)
	return vec, nil
}

func (g *Gateway) incCache(result string) {
	if g.cacheTotal != nil {
		g.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (g *Gateway) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (g *Gateway) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			g.logger.Warn("failed to read cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		g.logger.Warn("failed to decode cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (g *Gateway) putToCache(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		g.logger.Warn("failed to encode embedding for cache", zap.Error(err))
		return
	}
	if err := g.store.Set(ctx, key, data, g.ttl); err != nil {
		g.logger.Warn("failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
