package extract_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/extract"
)

func TestExtract_InvalidBytes(t *testing.T) {
	e := extract.NewPDFExtractor()

	_, err := e.Extract(context.Background(), []byte("not a pdf at all"))

	assert.Error(t, err)
}

func TestExtract_RemovesSpooledFile(t *testing.T) {
	dir := t.TempDir()
	e := extract.NewPDFExtractorWithSpoolDir(dir)

	_, err := e.Extract(context.Background(), []byte("not a pdf at all"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spooled upload must be removed on failure")
}
