package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func TestChunkGroupsSentencesWithOverlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	doc := domain.Document{ID: "d", Content: "One. Two. Three. Four."}

	passages, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, passages, 3)
	assert.Equal(t, "One. Two.", passages[0].Text)
	assert.Equal(t, "Two. Three.", passages[1].Text)
	assert.Equal(t, "Three. Four.", passages[2].Text)
	assert.Equal(t, "d:0", passages[0].SourceID)
	assert.Equal(t, "d:1", passages[1].SourceID)
}

func TestChunkNoOverlap(t *testing.T) {
	c := NewSentenceChunker(2, 0)
	doc := domain.Document{ID: "d", Content: "One. Two. Three."}

	passages, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "One. Two.", passages[0].Text)
	assert.Equal(t, "Three.", passages[1].Text)
}

func TestChunkTextWithoutTerminators(t *testing.T) {
	c := NewSentenceChunker(5, 1)
	doc := domain.Document{ID: "d", Content: "just a fragment with no period"}

	passages, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "just a fragment with no period", passages[0].Text)
}

func TestChunkClampsExcessiveOverlap(t *testing.T) {
	// Overlap at or above the chunk size must still advance the window.
	for _, overlap := range []int{2, 5} {
		c := NewSentenceChunker(2, overlap)
		doc := domain.Document{ID: "d", Content: "One. Two. Three."}

		passages, err := c.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, passages, 2)
		assert.Equal(t, "One. Two.", passages[0].Text)
		assert.Equal(t, "Two. Three.", passages[1].Text)
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	c := NewSentenceChunker(5, 1)

	passages, err := c.Chunk(domain.Document{ID: "d", Content: "   \n  "})
	require.NoError(t, err)
	assert.Empty(t, passages)
}
