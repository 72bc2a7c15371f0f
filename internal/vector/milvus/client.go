package milvus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docuchat/backend/pkg/logger"
)

// Client wraps the Milvus collection holding document chunks. Every chunk
// carries file_hash and source_filename metadata; those two fields are the
// only handles for deduplication checks, listing, and deletion.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// Chunk is the unit of storage: a bounded span of document text plus its
// embedding and identifying metadata.
type Chunk struct {
	ID             string
	Embedding      []float32
	Content        string
	SourceFilename string
	FileHash       string
	Page           int
}

// StoredChunk is a metadata-only view returned by filter queries.
type StoredChunk struct {
	ID             string
	SourceFilename string
	FileHash       string
}

// ScoredChunk is a similarity search hit. Score is normalized to [0,1],
// higher meaning more relevant.
type ScoredChunk struct {
	ID             string
	Content        string
	SourceFilename string
	FileHash       string
	Page           int
	Score          float64
}

// DocumentRef identifies one ingested document.
type DocumentRef struct {
	Filename string
	FileHash string
}

func NewClient(ctx context.Context, endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "96",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "source_filename",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "file_hash",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "page",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Insert adds chunks as one batch and flushes, so the dedup query sees them
// on the next read.
func (m *Client) Insert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	contents := make([]string, len(chunks))
	filenames := make([]string, len(chunks))
	hashes := make([]string, len(chunks))
	pages := make([]int64, len(chunks))
	timestamps := make([]int64, len(chunks))

	now := time.Now().Unix()
	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		contents[i] = chunk.Content
		filenames[i] = chunk.SourceFilename
		hashes[i] = chunk.FileHash
		pages[i] = int64(chunk.Page)
		timestamps[i] = now
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("source_filename", filenames),
		entity.NewColumnVarChar("file_hash", hashes),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnInt64("created_at", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector index", zap.Int("count", len(chunks)))

	return nil
}

// Search returns the topK nearest chunks with normalized scores. Milvus
// reports COSINE similarity in [-1,1]; it is rescaled to [0,1] here so the
// similarity threshold applies on one scale regardless of hit sign.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "content", "source_filename", "file_hash", "page"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]ScoredChunk, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		contentCol := sr.Fields.GetColumn("content")
		filenameCol := sr.Fields.GetColumn("source_filename")
		hashCol := sr.Fields.GetColumn("file_hash")
		pageCol := sr.Fields.GetColumn("page")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			content, _ := contentCol.Get(i)
			filename, _ := filenameCol.Get(i)
			hash, _ := hashCol.Get(i)
			page, _ := pageCol.Get(i)

			results = append(results, ScoredChunk{
				ID:             chunkID.(string),
				Content:        content.(string),
				SourceFilename: filename.(string),
				FileHash:       hash.(string),
				Page:           int(page.(int64)),
				Score:          normalizeScore(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// QueryByHash returns up to limit chunks carrying the given file hash. The
// query runs at strong consistency so it observes preceding deletes; the
// batched delete loop depends on that read-after-delete guarantee.
func (m *Client) QueryByHash(ctx context.Context, fileHash string, limit int) ([]StoredChunk, error) {
	expr := fmt.Sprintf(`file_hash == "%s"`, fileHash)

	rs, err := m.client.Query(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "source_filename", "file_hash"},
		client.WithLimit(int64(limit)),
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query by hash: %w", err)
	}

	return storedChunks(rs)
}

// DeleteByIDs removes the given chunk ids and flushes the delete.
func (m *Client) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	err := m.client.DeleteByPks(ctx, m.collectionName, "", entity.NewColumnVarChar("chunk_id", ids))
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush delete: %w", err)
	}

	logger.Debug("Chunks deleted from vector index", zap.Int("count", len(ids)))

	return nil
}

// ListDocuments returns one entry per distinct file hash, sorted by
// filename.
func (m *Client) ListDocuments(ctx context.Context) ([]DocumentRef, error) {
	rs, err := m.client.Query(
		ctx,
		m.collectionName,
		[]string{},
		`file_hash != ""`,
		[]string{"chunk_id", "source_filename", "file_hash"},
		client.WithLimit(16384),
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	chunks, err := storedChunks(rs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	docs := make([]DocumentRef, 0)
	for _, chunk := range chunks {
		if seen[chunk.FileHash] {
			continue
		}
		seen[chunk.FileHash] = true
		docs = append(docs, DocumentRef{
			Filename: chunk.SourceFilename,
			FileHash: chunk.FileHash,
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Filename < docs[j].Filename
	})

	return docs, nil
}

func storedChunks(rs client.ResultSet) ([]StoredChunk, error) {
	idCol := rs.GetColumn("chunk_id")
	if idCol == nil {
		return nil, nil
	}
	filenameCol := rs.GetColumn("source_filename")
	hashCol := rs.GetColumn("file_hash")

	chunks := make([]StoredChunk, 0, idCol.Len())
	for i := 0; i < idCol.Len(); i++ {
		id, err := idCol.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk_id: %w", err)
		}
		filename, err := filenameCol.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read source_filename: %w", err)
		}
		hash, err := hashCol.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read file_hash: %w", err)
		}
		chunks = append(chunks, StoredChunk{
			ID:             id,
			SourceFilename: filename,
			FileHash:       hash,
		})
	}

	return chunks, nil
}

func normalizeScore(cosine float32) float64 {
	score := (float64(cosine) + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
