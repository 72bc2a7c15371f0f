package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/retrieval"
	"github.com/docuchat/backend/internal/vector/milvus"
)

type stubIndex struct {
	hits []milvus.ScoredChunk
	err  error

	gotEmbedding []float32
	gotTopK      int
}

func (s *stubIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.ScoredChunk, error) {
	s.gotEmbedding = queryEmbedding
	s.gotTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

type stubEmbedder struct {
	embedding []float32
	err       error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

func chunk(id string, score float64) milvus.ScoredChunk {
	return milvus.ScoredChunk{
		ID:             id,
		Content:        "content-" + id,
		SourceFilename: id + ".pdf",
		FileHash:       "hash-" + id,
		Page:           1,
		Score:          score,
	}
}

func TestSearch_FiltersBelowThreshold(t *testing.T) {
	index := &stubIndex{hits: []milvus.ScoredChunk{
		chunk("a", 0.91),
		chunk("b", 0.69),
		chunk("c", 0.70),
		chunk("d", 0.12),
	}}
	engine := retrieval.NewEngine(index, &stubEmbedder{embedding: []float32{0.5}})

	results, err := engine.Search(context.Background(), "question", 10, 0.7)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.7)
	}
}

func TestSearch_SortsDescending(t *testing.T) {
	index := &stubIndex{hits: []milvus.ScoredChunk{
		chunk("low", 0.72),
		chunk("high", 0.95),
		chunk("mid", 0.80),
	}}
	engine := retrieval.NewEngine(index, &stubEmbedder{embedding: []float32{0.5}})

	results, err := engine.Search(context.Background(), "question", 10, 0.7)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "content-high", results[0].Content)
	assert.Equal(t, "content-mid", results[1].Content)
	assert.Equal(t, "content-low", results[2].Content)
}

func TestSearch_EqualScoresKeepIndexOrder(t *testing.T) {
	index := &stubIndex{hits: []milvus.ScoredChunk{
		chunk("first", 0.8),
		chunk("second", 0.8),
	}}
	engine := retrieval.NewEngine(index, &stubEmbedder{embedding: []float32{0.5}})

	results, err := engine.Search(context.Background(), "question", 10, 0.7)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "content-first", results[0].Content)
	assert.Equal(t, "content-second", results[1].Content)
}

func TestSearch_EmptyResultIsSuccess(t *testing.T) {
	index := &stubIndex{hits: []milvus.ScoredChunk{chunk("a", 0.3)}}
	engine := retrieval.NewEngine(index, &stubEmbedder{embedding: []float32{0.5}})

	results, err := engine.Search(context.Background(), "unrelated question", 10, 0.7)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_PassesEmbeddingAndTopK(t *testing.T) {
	index := &stubIndex{}
	engine := retrieval.NewEngine(index, &stubEmbedder{embedding: []float32{0.1, 0.2}})

	_, err := engine.Search(context.Background(), "question", 5, 0.7)

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, index.gotEmbedding)
	assert.Equal(t, 5, index.gotTopK)
}

func TestSearch_EmbedderFailure(t *testing.T) {
	engine := retrieval.NewEngine(&stubIndex{}, &stubEmbedder{err: errors.New("api down")})

	_, err := engine.Search(context.Background(), "question", 10, 0.7)

	assert.ErrorIs(t, err, apperr.ErrRetrievalFailed)
}

func TestSearch_IndexFailure(t *testing.T) {
	index := &stubIndex{err: errors.New("collection not loaded")}
	engine := retrieval.NewEngine(index, &stubEmbedder{embedding: []float32{0.5}})

	_, err := engine.Search(context.Background(), "question", 10, 0.7)

	assert.ErrorIs(t, err, apperr.ErrRetrievalFailed)
}
