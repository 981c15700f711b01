package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docchat/internal/domain"
)

func TestAssembleContainsAllSections(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleUser, Text: "What is a mutex?"},
		{Role: domain.RoleAssistant, Text: "A mutual exclusion lock."},
	}
	passages := []domain.Passage{
		{Text: "sync.Mutex provides mutual exclusion."},
		{Text: "RWMutex allows concurrent readers."},
	}

	p := Assemble("When should I use RWMutex?", history, passages)

	assert.True(t, strings.HasSuffix(p, "\nAssistant: "))
	assert.Contains(t, p, "Conversation history:")
	assert.Contains(t, p, "\nUser: What is a mutex?\nAssistant: A mutual exclusion lock.\n")
	assert.Contains(t, p, "\nUser: When should I use RWMutex?\n")
	assert.Contains(t, p, "Document 1:\nsync.Mutex provides mutual exclusion.")
	assert.Contains(t, p, "Document 2:\nRWMutex allows concurrent readers.")

	// History comes before the current question, which comes before context.
	histPos := strings.Index(p, "What is a mutex?")
	questionPos := strings.Index(p, "When should I use RWMutex?")
	contextPos := strings.Index(p, "Document 1:")
	assert.Less(t, histPos, questionPos)
	assert.Less(t, questionPos, contextPos)
}

func TestAssembleEmptyHistoryAndPassages(t *testing.T) {
	p := Assemble("Hello?", nil, nil)

	assert.Contains(t, p, "Conversation history:")
	assert.Contains(t, p, "\nUser: Hello?\n")
	assert.True(t, strings.HasSuffix(p, "\nAssistant: "))
	assert.NotContains(t, p, "Document 1:")
}

func TestAssembleSkipsUnpairedTrailingMessage(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleUser, Text: "First question"},
		{Role: domain.RoleAssistant, Text: "First answer"},
		{Role: domain.RoleUser, Text: "Dangling question"},
	}

	p := Assemble("Current question", history, nil)

	assert.Contains(t, p, "First question")
	assert.Contains(t, p, "First answer")
	assert.NotContains(t, p, "Dangling question")
}

func TestAssembleSkipsMisorderedPairs(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleAssistant, Text: "Answer without question"},
		{Role: domain.RoleUser, Text: "Question after answer"},
	}

	p := Assemble("Current", history, nil)

	assert.NotContains(t, p, "Answer without question")
	assert.NotContains(t, p, "Question after answer")
}
