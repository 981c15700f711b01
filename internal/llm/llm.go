// Package llm defines the language-model capability consumed by the
// conversation core. Implementations live in subpackages.
package llm

import "context"

// Stream is a finite, non-restartable sequence of answer fragments.
// Concatenating every fragment in order yields the complete answer.
type Stream interface {
	// Next returns the next text fragment. It returns io.EOF once the
	// answer is complete, and a domain.ErrGeneration-wrapped error if the
	// underlying generation fails mid-stream.
	Next() (string, error)

	// Close releases the underlying transport. Abandoning a stream early
	// must go through Close; it never persists anything.
	Close() error
}

// Client produces text from prompts, either whole or incrementally.
type Client interface {
	// Complete returns the full completion for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Stream starts an incremental completion for a prompt.
	Stream(ctx context.Context, prompt string) (Stream, error)
}
