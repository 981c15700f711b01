package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/chunker"
	"docchat/internal/domain"
	"docchat/internal/embedding/tfidf"
	"docchat/internal/index"
)

func buildTestIndex(t *testing.T) *index.Index {
	t.Helper()
	docs := []domain.Document{
		{ID: "nets", Path: "nets.txt", Content: "Goroutines run concurrently. Channels connect goroutines. Select waits on multiple channels."},
		{ID: "http", Path: "http.txt", Content: "The http package serves requests. Handlers implement ServeHTTP. Middleware wraps handlers."},
	}
	ix, err := index.Build(context.Background(), "go-docs", docs,
		chunker.NewSentenceChunker(1, 0), tfidf.NewEmbedder())
	require.NoError(t, err)
	return ix
}

func TestRetrieveRanksRelevantPassagesFirst(t *testing.T) {
	r := New(5, nil)
	ix := buildTestIndex(t)

	results, err := r.Retrieve(ix, "how do channels connect goroutines", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Text, "Channels connect goroutines")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestRetrieveDefaultK(t *testing.T) {
	r := New(2, nil)
	ix := buildTestIndex(t)

	results, err := r.Retrieve(ix, "goroutines", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieveLexicalFallback(t *testing.T) {
	r := New(5, nil)

	// A query made of stopwords embeds to the zero vector, so vector scores
	// cannot separate passages and lexical token overlap takes over.
	docs := []domain.Document{
		{ID: "d", Path: "d.txt", Content: "It is in the. Zebra quagga okapi. Compilers emit machine code."},
	}
	ix, err := index.Build(context.Background(), "odd", docs,
		chunker.NewSentenceChunker(1, 0), tfidf.NewEmbedder())
	require.NoError(t, err)

	results, err := r.Retrieve(ix, "it is in the", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "It is in the")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestRetrieveNilIndex(t *testing.T) {
	r := New(5, nil)

	_, err := r.Retrieve(nil, "anything", 3)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}
