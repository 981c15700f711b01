// Package chat orchestrates retrieval-augmented conversations: it composes
// the index cache, retriever, prompt assembly, answer streaming, title
// derivation and persistence into the per-turn protocol.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docchat/internal/docs"
	"docchat/internal/domain"
	"docchat/internal/index"
	"docchat/internal/llm"
	"docchat/internal/retrieve"
	"docchat/internal/store"
	"docchat/internal/title"
)

// titleTimeout bounds the detached title derivation task.
const titleTimeout = 60 * time.Second

// Service wires the conversation core's collaborators. One Service serves
// any number of sessions; the index cache is shared across all of them.
type Service struct {
	store     *store.Store
	source    *docs.Source
	cache     *index.Cache
	retriever *retrieve.Retriever
	model     llm.Client
	titles    *title.Deriver
	logger    *slog.Logger
}

// NewService creates the orchestrator service.
func NewService(st *store.Store, source *docs.Source, cache *index.Cache, retriever *retrieve.Retriever, model llm.Client, titles *title.Deriver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		source:    source,
		cache:     cache,
		retriever: retriever,
		model:     model,
		titles:    titles,
		logger:    logger,
	}
}

// Store exposes the persistence layer for listing and inspection.
func (s *Service) Store() *store.Store { return s.store }

// Source exposes the document source for collection discovery.
func (s *Service) Source() *docs.Source { return s.source }

// NewSession starts a session on a fresh conversation grounded in the named
// collection. The collection must resolve to a stored record.
func (s *Service) NewSession(ctx context.Context, collection string) (*Session, error) {
	if collection == "" {
		return nil, fmt.Errorf("a collection must be selected before starting a conversation: %w", domain.ErrValidation)
	}
	if _, err := s.store.GetCollectionByName(ctx, collection); err != nil {
		return nil, err
	}
	return s.freshSession(collection), nil
}

// OpenSession resumes a session on a stored conversation. The conversation's
// prior history stays viewable even if its collection has since been deleted;
// submitting a new message then fails with a not-found validation error.
func (s *Service) OpenSession(ctx context.Context, conversationID string) (*Session, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	state := StateActive
	if len(conv.Messages) == 0 {
		state = StateNew
	}
	return &Session{
		service:    s,
		conv:       conv,
		collection: conv.CollectionName,
		state:      state,
		logger:     s.logger.With("conversation", conv.ID),
	}, nil
}

// RegisterCollection records an existing directory under the documents root
// as a collection. Without overwrite, a name collision is rejected before any
// work begins.
func (s *Service) RegisterCollection(ctx context.Context, name, sourceURL string, overwrite bool) (*domain.Collection, error) {
	count := s.source.CountFiles(name)
	if count == 0 {
		return nil, fmt.Errorf("no documents found for collection %q under %s: %w", name, s.source.Root(), domain.ErrNotFound)
	}
	c := &domain.Collection{
		ID:        uuid.NewString(),
		Name:      name,
		SourceURL: sourceURL,
		FileCount: count,
		CreatedAt: time.Now(),
		Status:    domain.StatusCompleted,
	}
	if err := s.store.SaveCollection(ctx, c, overwrite); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCollection removes a collection record and its backing document
// directory. Conversations referencing the collection are kept; they stop
// accepting new messages once the collection no longer resolves.
func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	c, err := s.store.GetCollectionByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCollection(ctx, c.ID); err != nil {
		return err
	}
	if err := s.source.Remove(name); err != nil {
		s.logger.Warn("failed to remove collection documents", "collection", name, "error", err)
	}
	return nil
}

func (s *Service) freshSession(collection string) *Session {
	id := uuid.NewString()
	return &Session{
		service:    s,
		conv:       &domain.Conversation{ID: id, CollectionName: collection},
		collection: collection,
		state:      StateNew,
		logger:     s.logger.With("conversation", id),
	}
}

// loadDocuments is the loader handed to the index cache; it reads the
// collection's documents from the documents root.
func (s *Service) loadDocuments(ctx context.Context, collection string) ([]domain.Document, error) {
	return s.source.Load(ctx, collection)
}
