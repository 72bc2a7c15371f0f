package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(512, 50)

	chunks := s.Split("a short paragraph that fits in one window")

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph that fits in one window", chunks[0])
}

func TestSplitter_BlankTextNoChunks(t *testing.T) {
	s := NewSplitter(512, 50)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestSplitter_ChunkSizeBound(t *testing.T) {
	s := NewSplitter(512, 50)
	text := strings.Repeat("lorem ipsum dolor sit amet ", 200)

	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 512)
	}
}

func TestSplitter_ConsecutiveChunksOverlap(t *testing.T) {
	s := NewSplitter(512, 50)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 100)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		curr := []rune(chunks[i])
		tail := string(prev[len(prev)-50:])
		head := string(curr[:50])
		assert.Equal(t, tail, head, "chunks %d and %d should share the overlap window", i-1, i)
	}
}

func TestSplitter_PreservesOrder(t *testing.T) {
	s := NewSplitter(512, 50)
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("sentence number marker ")
	}
	text := b.String()

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	// Reassembling the chunks minus their overlaps must reproduce the input.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		runes := []rune(chunks[i])
		rebuilt.WriteString(string(runes[50:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitter_PrefersWhitespaceCut(t *testing.T) {
	s := NewSplitter(100, 20)
	text := strings.Repeat("word ", 100)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(chunk, " "), "chunk %d should end on a word boundary", i)
	}
}

func TestNewSplitter_DefaultsOnBadValues(t *testing.T) {
	s := NewSplitter(0, -1)

	assert.Equal(t, 512, s.chunkSize)
	assert.Equal(t, 50, s.chunkOverlap)
}
