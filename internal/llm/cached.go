package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/metrics"
	"github.com/docuchat/backend/pkg/logger"
	"github.com/docuchat/backend/pkg/utils"
)

// Embedder is the embedding capability as produced by this package: single
// texts for query-time retrieval, batches for ingestion.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache is the slice of the cache the embedder needs.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// CachedEmbedder reads through an embedding cache before hitting the
// capability. Cache failures are logged and treated as misses; they never
// fail the request.
type CachedEmbedder struct {
	inner Embedder
	cache EmbeddingCache
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.TextHash(text)

	embedding, found := c.lookup(ctx, key)
	if found {
		return embedding, nil
	}

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, embedding)

	return embedding, nil
}

// EmbedBatch checks the cache per text and batch-embeds only the misses,
// preserving input order in the result.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		keys[i] = utils.TextHash(text)
		embedding, found := c.lookup(ctx, keys[i])
		if found {
			embeddings[i] = embedding
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return embeddings, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(fresh), len(missTexts))
	}

	for j, i := range missIndexes {
		embeddings[i] = fresh[j]
		c.store(ctx, keys[i], fresh[j])
	}

	logger.Debug("Batch embeddings resolved",
		zap.Int("texts", len(texts)),
		zap.Int("cache_hits", len(texts)-len(missTexts)),
	)

	return embeddings, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	embedding, found, err := c.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if found {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return embedding, true
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()
	return nil, false
}

func (c *CachedEmbedder) store(ctx context.Context, key string, embedding []float32) {
	if err := c.cache.SetEmbedding(ctx, key, embedding, c.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
}
