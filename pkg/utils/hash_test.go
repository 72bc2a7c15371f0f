package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docuchat/backend/pkg/utils"
)

func TestFileHash(t *testing.T) {
	data := []byte("%PDF-1.4 some document bytes")

	first := utils.FileHash(data)
	second := utils.FileHash(data)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestFileHash_DistinctInputs(t *testing.T) {
	a := utils.FileHash([]byte("document one"))
	b := utils.FileHash([]byte("document two"))

	assert.NotEqual(t, a, b)
}

func TestFileHash_Empty(t *testing.T) {
	// SHA-256 of the empty input is a fixed, well-known digest.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		utils.FileHash(nil),
	)
}

func TestTextHash_MatchesFileHash(t *testing.T) {
	text := "what is the refund policy?"

	assert.Equal(t, utils.FileHash([]byte(text)), utils.TextHash(text))
}
