package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareAndEmbed(t *testing.T) {
	e := NewEmbedder()
	corpus := []string{
		"goroutines run concurrently",
		"channels connect goroutines",
		"maps store key value pairs",
	}
	require.NoError(t, e.Prepare(corpus))
	assert.Greater(t, e.Dimension(), 0)

	vec, err := e.Embed("channels connect goroutines")
	require.NoError(t, err)
	require.Len(t, vec, e.Dimension())

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbedBeforePrepareFails(t *testing.T) {
	e := NewEmbedder()

	_, err := e.Embed("anything")
	assert.Error(t, err)
}

func TestEmbedOutOfVocabularyIsZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta", "gamma delta"}))

	vec, err := e.Embed("completely unrelated words")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestVectorsAreReproducible(t *testing.T) {
	corpus := []string{"one two three", "three four five", "five six one"}

	a := NewEmbedder()
	require.NoError(t, a.Prepare(corpus))
	b := NewEmbedder()
	require.NoError(t, b.Prepare(corpus))

	va, err := a.Embed("three five")
	require.NoError(t, err)
	vb, err := b.Embed("three five")
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestPrepareEmptyCorpus(t *testing.T) {
	e := NewEmbedder()
	assert.Error(t, e.Prepare(nil))
}
