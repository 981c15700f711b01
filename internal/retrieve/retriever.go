// Package retrieve ranks collection passages against a query.
package retrieve

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"docchat/internal/domain"
	"docchat/internal/index"
)

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Retriever returns the most relevant passages of an index for a query,
// ordered by descending score with ties kept in index order.
type Retriever struct {
	defaultK int
	logger   *slog.Logger
}

// New creates a Retriever. defaultK bounds result counts when callers pass
// k <= 0.
func New(defaultK int, logger *slog.Logger) *Retriever {
	if defaultK <= 0 {
		defaultK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{defaultK: defaultK, logger: logger}
}

// Retrieve returns at most k passages for the query. Vector search is used
// first; when the query shares no vocabulary with the index (all scores
// zero), a lexical token-overlap ranking takes over so the caller still gets
// usable context. Failures wrap domain.ErrRetrieval and are not retried.
func (r *Retriever) Retrieve(ix *index.Index, query string, k int) ([]domain.Passage, error) {
	if ix == nil {
		return nil, fmt.Errorf("%w: nil index", domain.ErrRetrieval)
	}
	if k <= 0 {
		k = r.defaultK
	}

	results, err := ix.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	allZero := true
	for _, res := range results {
		if res.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		r.logger.Debug("vector scores all zero, falling back to lexical ranking", "query", query)
		results = lexicalRank(ix.Passages(), query, k)
	}

	r.logger.Debug("retrieved passages", "collection", ix.Collection(), "count", len(results))
	return results, nil
}

// lexicalRank scores passages by Ochiai token-set overlap with the query.
func lexicalRank(passages []domain.Passage, query string, k int) []domain.Passage {
	qset := tokenSet(query)
	scores := make([]float64, len(passages))
	for i, p := range passages {
		scores[i] = ochiai(qset, p.Text)
	}
	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if k > len(order) {
		k = len(order)
	}
	out := make([]domain.Passage, 0, k)
	for _, j := range order[:k] {
		p := passages[j]
		p.Score = scores[j]
		out = append(out, p)
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordPattern.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai computes |A∩B| / sqrt(|A||B|) over the token sets of the query and
// the passage text.
func ochiai(qset map[string]struct{}, text string) float64 {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(tokens))
	inter := 0
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / (math.Sqrt(float64(len(qset))) * math.Sqrt(float64(len(seen))))
}
