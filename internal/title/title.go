// Package title derives short conversation titles from the first question.
package title

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docchat/internal/llm"
)

// MaxWords bounds a derived title.
const MaxWords = 5

// Deriver produces a conversation title of at most MaxWords words. Model
// failures are absorbed by a deterministic fallback, so derivation itself
// never fails.
type Deriver struct {
	client llm.Client
	logger *slog.Logger
}

// NewDeriver creates a Deriver backed by the given model client.
func NewDeriver(client llm.Client, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{client: client, logger: logger}
}

// Derive asks the model for a concise title and truncates it to MaxWords.
// On any failure it falls back to Fallback(question).
func (d *Deriver) Derive(ctx context.Context, question string) string {
	prompt := fmt.Sprintf(`Based on the following question, create a concise and relevant title for a conversation.
The title should have AT MOST %d words and capture the essence of the question.

Question: %q

Return ONLY the title, without quotes or additional punctuation.`, MaxWords, question)

	raw, err := d.client.Complete(ctx, prompt)
	if err != nil {
		d.logger.Warn("title generation failed, using fallback", "error", err)
		return Fallback(question)
	}
	t := strings.Trim(strings.TrimSpace(raw), `"'`)
	if t == "" {
		return Fallback(question)
	}
	return truncateWords(t, MaxWords)
}

// Fallback builds a deterministic title from the question itself: the first
// MaxWords words, with an ellipsis marker when the question is longer.
func Fallback(question string) string {
	words := strings.Fields(question)
	if len(words) <= MaxWords {
		return question
	}
	return strings.Join(words[:MaxWords], " ") + "..."
}

func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
