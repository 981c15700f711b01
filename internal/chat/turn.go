package chat

import (
	"context"
	"io"
	"strings"

	"docchat/internal/domain"
	"docchat/internal/llm"
)

// Turn is one in-flight question/answer exchange. It wraps the model's
// answer stream: fragments read through Next may be rendered immediately,
// and once the stream completes the turn appends both messages and persists
// the conversation. A turn abandoned early or broken mid-stream persists
// nothing.
type Turn struct {
	session        *Session
	conversationID string
	question       string
	passages       []domain.Passage
	stream         llm.Stream

	answer   strings.Builder
	finished bool
	failed   bool
}

// Question returns the submitted question.
func (t *Turn) Question() string { return t.question }

// Passages returns the retrieved context used to ground the answer.
func (t *Turn) Passages() []domain.Passage { return t.passages }

// Answer returns the text accumulated so far. It is only the canonical
// answer once Next has returned io.EOF.
func (t *Turn) Answer() string { return t.answer.String() }

// Next returns the next answer fragment. io.EOF marks a complete answer, at
// which point the turn has been persisted. Any other error marks the turn
// failed: delivered fragments stay readable via Answer for display, but
// nothing is written to the store.
func (t *Turn) Next(ctx context.Context) (string, error) {
	if t.finished {
		return "", io.EOF
	}
	if t.failed {
		return "", domain.ErrGeneration
	}

	fragment, err := t.stream.Next()
	if err == nil {
		t.answer.WriteString(fragment)
		return fragment, nil
	}
	if err == io.EOF {
		_ = t.stream.Close()
		if perr := t.session.finishTurn(ctx, t.conversationID, t.question, t.answer.String()); perr != nil {
			// A failed persist is a failed turn, not a completed one.
			t.failed = true
			return "", perr
		}
		t.finished = true
		return "", io.EOF
	}

	t.failed = true
	_ = t.stream.Close()
	t.session.failTurn()
	return "", err
}

// Abort abandons the turn: the stream is closed, the transport released, and
// the partial answer is discarded for persistence purposes.
func (t *Turn) Abort() {
	if t.finished || t.failed {
		return
	}
	t.failed = true
	_ = t.stream.Close()
	t.session.failTurn()
}
