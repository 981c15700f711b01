package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"docchat/internal/domain"
)

// SentenceChunker splits document text into sentence-based passages with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewSentenceChunker creates a chunker producing chunks of the given sentence
// count, with the given number of sentences shared between adjacent chunks.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// An overlap that swallows the whole chunk would keep the window from
	// ever advancing.
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk splits a document into passages. A document without sentence
// terminators becomes a single passage; an empty document yields none.
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Passage, error) {
	sentences := c.splitter.FindAllString(document.Content, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(document.Content)
		if trimmed == "" {
			return nil, nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var passages []domain.Passage
	i := 0
	idx := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		passages = append(passages, domain.Passage{
			Text:     strings.Join(sentences[i:end], " "),
			SourceID: document.ID + ":" + strconv.Itoa(idx),
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		if i < 0 {
			i = 0
		}
		idx++
	}
	return passages, nil
}
