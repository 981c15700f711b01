package domain

import "time"

// Roles a chat message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Collection statuses.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Message is a single turn entry in a conversation. Messages are immutable
// once appended.
type Message struct {
	Role      string
	Text      string
	CreatedAt time.Time
}

// Conversation is a persistent chat: an ordered, append-only sequence of
// messages plus a short title. CollectionName references the collection the
// conversation is grounded in; it is a reference, not ownership.
type Conversation struct {
	ID             string
	Title          string
	Messages       []Message
	CollectionName string
	UpdatedAt      time.Time
}

// Append adds a message and bumps UpdatedAt. Existing messages are never
// reordered or removed individually.
func (c *Conversation) Append(role, text string) {
	now := time.Now()
	c.Messages = append(c.Messages, Message{Role: role, Text: text, CreatedAt: now})
	c.UpdatedAt = now
}

// Collection describes a named set of documents produced by an external
// source (e.g. a scraping run). The documents themselves live on disk under
// the collection's name; the record only carries metadata.
type Collection struct {
	ID        string
	Name      string
	SourceURL string
	FileCount int
	CreatedAt time.Time
	Status    string
}

// Document is a single text file belonging to a collection.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Passage is a scored unit of retrieved text used as generation context.
type Passage struct {
	Text     string
	SourceID string
	Score    float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
}

// Chunker splits documents into passages suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Passage, error)
}
