package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/metrics"
	"github.com/docuchat/backend/internal/vector/milvus"
	"github.com/docuchat/backend/pkg/logger"
)

// Index is the slice of the vector index retrieval needs.
type Index interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.ScoredChunk, error)
}

// Embedder converts the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is ephemeral: produced per query, never persisted.
type SearchResult struct {
	Content        string
	SourceFilename string
	FileHash       string
	Page           int
	Score          float64
}

// Engine answers "which chunks are relevant to this text". Scores are on a
// normalized [0,1] scale where higher means more relevant; anything
// strictly below the threshold is discarded. An empty result is a valid
// answer, not a failure, and the engine never retries the index.
type Engine struct {
	index    Index
	embedder Embedder
}

func NewEngine(index Index, embedder Embedder) *Engine {
	return &Engine{
		index:    index,
		embedder: embedder,
	}
}

func (e *Engine) Search(ctx context.Context, query string, k int, threshold float64) ([]SearchResult, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRetrievalFailed, fmt.Errorf("query embedding: %w", err))
	}

	hits, err := e.index.Search(ctx, embedding, k)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRetrievalFailed, fmt.Errorf("vector search: %w", err))
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		results = append(results, SearchResult{
			Content:        hit.Content,
			SourceFilename: hit.SourceFilename,
			FileHash:       hit.FileHash,
			Page:           hit.Page,
			Score:          hit.Score,
		})
	}

	// Stable sort keeps the index-assigned order between equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	metrics.RetrievalResults.Observe(float64(len(results)))

	logger.Info("Retrieval completed",
		zap.Int("candidates", len(hits)),
		zap.Int("above_threshold", len(results)),
		zap.Float64("threshold", threshold),
	)

	return results, nil
}
