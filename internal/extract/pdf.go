package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/docuchat/backend/pkg/logger"
)

// Page is one unit of extracted text, positioned by its 1-based page number.
type Page struct {
	Number int
	Text   string
}

// Extractor turns raw document bytes into ordered page text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]Page, error)
}

// PDFExtractor reads page text from PDF bytes. The bytes are spooled to a
// temporary file for the duration of the read; the file is removed on every
// exit path.
type PDFExtractor struct {
	spoolDir string
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{spoolDir: os.TempDir()}
}

// NewPDFExtractorWithSpoolDir overrides where upload bytes are spooled.
func NewPDFExtractorWithSpoolDir(dir string) *PDFExtractor {
	return &PDFExtractor{spoolDir: dir}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]Page, error) {
	tmp, err := os.CreateTemp(e.spoolDir, "upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove temp file", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	file, reader, err := pdf.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	pages := make([]Page, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	logger.Info("Extracted text from PDF",
		zap.Int("total_pages", reader.NumPage()),
		zap.Int("pages_with_text", len(pages)),
	)

	return pages, nil
}
