package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/extract"
	"github.com/docuchat/backend/internal/metrics"
	"github.com/docuchat/backend/internal/vector/milvus"
	"github.com/docuchat/backend/pkg/logger"
	"github.com/docuchat/backend/pkg/utils"
)

// Index is the slice of the vector index the document lifecycle needs.
type Index interface {
	Insert(ctx context.Context, chunks []milvus.Chunk) error
	QueryByHash(ctx context.Context, fileHash string, limit int) ([]milvus.StoredChunk, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	ListDocuments(ctx context.Context) ([]milvus.DocumentRef, error)
}

// BatchEmbedder is the embedding capability as consumed during ingestion.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

type UploadResult struct {
	Filename   string    `json:"filename"`
	FileHash   string    `json:"file_hash"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	UploadTime time.Time `json:"upload_time"`
}

type DocumentInfo struct {
	Filename string `json:"filename"`
	FileHash string `json:"file_hash"`
}

type DeleteResult struct {
	Filename      string `json:"filename"`
	DeletedChunks int    `json:"deleted_chunks"`
}

// Processor owns the document lifecycle: hash-deduplicated ingestion,
// listing, and batched deletion.
type Processor struct {
	index            Index
	embedder         BatchEmbedder
	extractor        extract.Extractor
	splitter         *Splitter
	deleteBatchSize  int
	maxDeleteBatches int
}

func NewProcessor(index Index, embedder BatchEmbedder, extractor extract.Extractor, chunkSize, chunkOverlap, deleteBatchSize, maxDeleteBatches int) *Processor {
	if deleteBatchSize <= 0 {
		deleteBatchSize = 1000
	}
	if maxDeleteBatches <= 0 {
		maxDeleteBatches = 100
	}
	return &Processor{
		index:            index,
		embedder:         embedder,
		extractor:        extractor,
		splitter:         NewSplitter(chunkSize, chunkOverlap),
		deleteBatchSize:  deleteBatchSize,
		maxDeleteBatches: maxDeleteBatches,
	}
}

// Ingest runs hash check, extraction, chunking, embedding, and one batch
// upsert. The duplicate check and the upsert are not atomic: two concurrent
// uploads of identical bytes can both pass the check and both write. That
// window is accepted; callers needing at-most-once must serialize uploads
// per hash themselves.
func (p *Processor) Ingest(ctx context.Context, data []byte, filename string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, apperr.Wrapf(apperr.ErrValidation, "uploaded file is empty")
	}

	start := time.Now()
	fileHash := utils.FileHash(data)

	logger.Info("Processing document",
		zap.String("filename", filename),
		zap.String("file_hash", shortHash(fileHash)),
	)

	existing, err := p.index.QueryByHash(ctx, fileHash, 1)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("duplicate check for %s: %w", filename, err))
	}
	if len(existing) > 0 {
		return nil, apperr.Wrapf(apperr.ErrDuplicateDocument, "document %q has already been uploaded", filename)
	}

	pages, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("text extraction for %s: %w", filename, err))
	}
	if len(pages) == 0 {
		logger.Warn("No text extracted from document", zap.String("filename", filename))
		return &UploadResult{
			Filename:   filename,
			FileHash:   fileHash,
			ChunkCount: 0,
			Status:     StatusWarning,
			Message:    "document processed but no text content was extracted",
			UploadTime: time.Now().UTC(),
		}, nil
	}

	chunks := p.buildChunks(pages, filename, fileHash)
	if len(chunks) == 0 {
		logger.Warn("No chunks produced from document", zap.String("filename", filename))
		return &UploadResult{
			Filename:   filename,
			FileHash:   fileHash,
			ChunkCount: 0,
			Status:     StatusWarning,
			Message:    "document processed but no text chunks were created",
			UploadTime: time.Now().UTC(),
		}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("embedding for %s: %w", filename, err))
	}
	if len(embeddings) != len(chunks) {
		return nil, apperr.Wrapf(apperr.ErrIngestionFailed, "embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := p.index.Insert(ctx, chunks); err != nil {
		// A partially applied batch would make the hash look present and
		// block retries; sweep it out best-effort before failing.
		p.rollback(ctx, fileHash)
		return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("vector store write for %s: %w", filename, err))
	}

	metrics.DocumentsIngested.Inc()
	metrics.ChunksStored.Add(float64(len(chunks)))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	logger.Info("Document processed successfully",
		zap.String("filename", filename),
		zap.String("file_hash", shortHash(fileHash)),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
	)

	return &UploadResult{
		Filename:   filename,
		FileHash:   fileHash,
		ChunkCount: len(chunks),
		Status:     StatusSuccess,
		Message:    fmt.Sprintf("successfully processed %d chunks", len(chunks)),
		UploadTime: time.Now().UTC(),
	}, nil
}

func (p *Processor) buildChunks(pages []extract.Page, filename, fileHash string) []milvus.Chunk {
	var chunks []milvus.Chunk
	for _, page := range pages {
		for i, content := range p.splitter.Split(page.Text) {
			chunks = append(chunks, milvus.Chunk{
				ID:             fmt.Sprintf("%s_p%d_%d", fileHash[:16], page.Number, i),
				Content:        content,
				SourceFilename: filename,
				FileHash:       fileHash,
				Page:           page.Number,
			})
		}
	}
	return chunks
}

func (p *Processor) rollback(ctx context.Context, fileHash string) {
	leftover, err := p.index.QueryByHash(ctx, fileHash, p.deleteBatchSize)
	if err != nil || len(leftover) == 0 {
		return
	}
	ids := make([]string, len(leftover))
	for i, chunk := range leftover {
		ids[i] = chunk.ID
	}
	if err := p.index.DeleteByIDs(ctx, ids); err != nil {
		logger.Warn("Failed to clean up partial ingest",
			zap.String("file_hash", shortHash(fileHash)),
			zap.Error(err),
		)
	}
}

// shortHash truncates for logging; delete requests arrive with
// caller-supplied hashes of any length.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// List returns the ingested documents, one entry per content hash, sorted
// by filename.
func (p *Processor) List(ctx context.Context) ([]DocumentInfo, error) {
	refs, err := p.index.ListDocuments(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRetrievalFailed, fmt.Errorf("list documents: %w", err))
	}

	docs := make([]DocumentInfo, 0, len(refs))
	for _, ref := range refs {
		docs = append(docs, DocumentInfo{
			Filename: ref.Filename,
			FileHash: ref.FileHash,
		})
	}
	return docs, nil
}

// Delete removes every chunk carrying fileHash in batches. Each iteration's
// query must observe the prior iteration's delete or the loop would never
// drain; the index contract guarantees that. The loop is additionally
// bounded so a misbehaving index fails loudly instead of spinning.
func (p *Processor) Delete(ctx context.Context, fileHash string) (*DeleteResult, error) {
	batch, err := p.index.QueryByHash(ctx, fileHash, p.deleteBatchSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("delete lookup for %s: %w", fileHash, err))
	}
	if len(batch) == 0 {
		return nil, apperr.Wrapf(apperr.ErrDocumentNotFound, "document with hash %q not found", fileHash)
	}

	filename := batch[0].SourceFilename
	totalDeleted := 0

	for iteration := 0; len(batch) > 0; iteration++ {
		if iteration >= p.maxDeleteBatches {
			return nil, apperr.Wrapf(apperr.ErrIngestionFailed,
				"delete for hash %s did not drain after %d batches (%d chunks removed)",
				fileHash, p.maxDeleteBatches, totalDeleted)
		}

		ids := make([]string, len(batch))
		for i, chunk := range batch {
			ids[i] = chunk.ID
		}

		if err := p.index.DeleteByIDs(ctx, ids); err != nil {
			return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("delete batch for %s: %w", fileHash, err))
		}
		totalDeleted += len(ids)

		logger.Debug("Deleted chunk batch",
			zap.String("file_hash", shortHash(fileHash)),
			zap.Int("batch", len(ids)),
			zap.Int("total", totalDeleted),
		)

		batch, err = p.index.QueryByHash(ctx, fileHash, p.deleteBatchSize)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("delete re-query for %s: %w", fileHash, err))
		}
	}

	metrics.ChunksDeleted.Add(float64(totalDeleted))

	logger.Info("Document deleted",
		zap.String("filename", filename),
		zap.String("file_hash", shortHash(fileHash)),
		zap.Int("deleted_chunks", totalDeleted),
	)

	return &DeleteResult{
		Filename:      filename,
		DeletedChunks: totalDeleted,
	}, nil
}
