// Package index builds and caches in-memory similarity indexes, one per
// document collection.
package index

import (
	"context"
	"fmt"
	"sort"

	"docchat/internal/domain"
)

// Index is a searchable snapshot of one collection's documents. It is built
// once and read-only afterwards, so lookups need no synchronization.
type Index struct {
	collection string
	embedder   domain.Embedder
	passages   []domain.Passage
	vectors    [][]float64
}

// Build chunks the documents, prepares the embedder on the chunk corpus and
// embeds every chunk. The returned index is valid for the document snapshot
// it was built from; it does not observe later collection mutation.
func Build(ctx context.Context, collection string, documents []domain.Document, chunker domain.Chunker, embedder domain.Embedder) (*Index, error) {
	if len(documents) == 0 {
		return nil, fmt.Errorf("no documents for collection %q", collection)
	}

	var passages []domain.Passage
	var corpus []string
	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := chunker.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("chunking %s: %w", doc.Path, err)
		}
		for _, ch := range chunks {
			passages = append(passages, ch)
			corpus = append(corpus, ch.Text)
		}
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("no indexable text in collection %q", collection)
	}

	if err := embedder.Prepare(corpus); err != nil {
		return nil, fmt.Errorf("preparing embedder: %w", err)
	}
	vectors := make([][]float64, len(passages))
	for i := range passages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := embedder.Embed(passages[i].Text)
		if err != nil {
			return nil, fmt.Errorf("embedding passage %s: %w", passages[i].SourceID, err)
		}
		vectors[i] = vec
	}

	return &Index{
		collection: collection,
		embedder:   embedder,
		passages:   passages,
		vectors:    vectors,
	}, nil
}

// Collection returns the name of the collection this index was built from.
func (ix *Index) Collection() string { return ix.collection }

// Passages returns all indexed passages in insertion order.
func (ix *Index) Passages() []domain.Passage { return ix.passages }

// Search embeds the query and returns the topK passages by descending cosine
// similarity. Ties keep insertion order.
func (ix *Index) Search(query string, topK int) ([]domain.Passage, error) {
	if topK <= 0 {
		topK = 5
	}
	queryVec, err := ix.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scores := make([]float64, len(ix.vectors))
	for i := range ix.vectors {
		scores[i] = dot(ix.vectors[i], queryVec)
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if topK > len(order) {
		topK = len(order)
	}
	results := make([]domain.Passage, 0, topK)
	for _, j := range order[:topK] {
		p := ix.passages[j]
		p.Score = scores[j]
		results = append(results, p)
	}
	return results, nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
