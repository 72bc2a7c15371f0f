package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/ingestion"
)

// DocumentService is the document lifecycle surface the HTTP layer
// consumes.
type DocumentService interface {
	Ingest(ctx context.Context, data []byte, filename string) (*ingestion.UploadResult, error)
	List(ctx context.Context) ([]ingestion.DocumentInfo, error)
	Delete(ctx context.Context, fileHash string) (*ingestion.DeleteResult, error)
}

type DocumentHandler struct {
	documents DocumentService
}

func NewDocumentHandler(documents DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload accepts a PDF as multipart form field "file".
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, apperr.Wrapf(apperr.ErrValidation, "multipart field 'file' is required"))
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "application/pdf" && !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return fail(c, apperr.Wrapf(apperr.ErrValidation, "only PDF files are allowed"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fail(c, apperr.Wrapf(apperr.ErrValidation, "failed to open uploaded file"))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fail(c, apperr.Wrap(apperr.ErrIngestionFailed, fmt.Errorf("read upload %s: %w", fileHeader.Filename, err)))
	}

	result, err := h.documents.Ingest(c.Context(), data, fileHeader.Filename)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(result)
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	docs, err := h.documents.List(c.Context())
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"documents": docs,
	})
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	fileHash := c.Params("file_hash")
	if fileHash == "" {
		return fail(c, apperr.Wrapf(apperr.ErrValidation, "file_hash is required"))
	}

	result, err := h.documents.Delete(c.Context(), fileHash)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(result)
}
