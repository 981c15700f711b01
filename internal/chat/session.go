package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docchat/internal/domain"
	"docchat/internal/prompt"
)

// State is the lifecycle of a session's current conversation.
type State int

const (
	// StateNew: no messages yet; the first submit persists a placeholder
	// record and launches the title task.
	StateNew State = iota
	// StateFirstTurnPending: first question accepted, title task launched,
	// answer in flight.
	StateFirstTurnPending
	// StateActive: steady state; turns repeat retrieve, assemble, stream,
	// persist without a title task.
	StateActive
	// StateClosed: conversation deleted; terminal.
	StateClosed
)

// Session drives one conversation. Turns are strictly serialized: a new
// Submit is rejected while a previous turn has not reached a terminal state.
// The only concurrency a session creates is the detached title task.
type Session struct {
	service *Service
	logger  *slog.Logger

	mu         sync.Mutex
	conv       *domain.Conversation
	collection string
	state      State
	inFlight   bool
}

// Conversation returns a snapshot of the current conversation record.
func (s *Session) Conversation() domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *s.conv
	snapshot.Messages = append([]domain.Message(nil), s.conv.Messages...)
	return snapshot
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Collection returns the collection the session is grounded in.
func (s *Session) Collection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

// Submit runs one turn for the question: retrieve context, assemble the
// prompt and start the answer stream. The caller must consume the returned
// Turn to completion (or abort it); the turn persists both messages only
// after the full answer arrived.
func (s *Session) Submit(ctx context.Context, question string) (*Turn, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, fmt.Errorf("conversation is closed: %w", domain.ErrValidation)
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, fmt.Errorf("a turn is already in flight: %w", domain.ErrValidation)
	}
	if s.collection == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("no collection selected: %w", domain.ErrValidation)
	}
	// Reserve the turn slot before any slow work, so a concurrent Submit is
	// rejected even while this one is still building the index or dialing
	// the model.
	s.inFlight = true
	firstTurn := s.state == StateNew
	collection := s.collection
	conversationID := s.conv.ID
	history := append([]domain.Message(nil), s.conv.Messages...)
	s.mu.Unlock()

	started := false
	defer func() {
		if !started {
			s.failTurn()
		}
	}()

	// The collection must still resolve; prior history stays viewable even
	// when it does not.
	if _, err := s.service.store.GetCollectionByName(ctx, collection); err != nil {
		return nil, err
	}

	if firstTurn {
		// Persist a placeholder so the conversation is addressable before
		// the title arrives, then launch the detached title task.
		placeholder := &domain.Conversation{
			ID:             conversationID,
			CollectionName: collection,
			UpdatedAt:      time.Now(),
		}
		if err := s.service.store.UpsertConversation(ctx, placeholder); err != nil {
			return nil, err
		}
		s.spawnTitleTask(conversationID, question)
		s.mu.Lock()
		s.state = StateFirstTurnPending
		s.mu.Unlock()
	}

	ix, err := s.service.cache.GetOrBuild(ctx, collection, s.service.loadDocuments)
	if err != nil {
		return nil, err
	}
	passages, err := s.service.retriever.Retrieve(ix, question, 0)
	if err != nil {
		return nil, err
	}
	grounded := prompt.Assemble(question, history, passages)

	stream, err := s.service.model.Stream(ctx, grounded)
	if err != nil {
		return nil, err
	}

	started = true
	s.logger.Debug("turn started", "question_len", len(question), "passages", len(passages))

	return &Turn{
		session:        s,
		conversationID: conversationID,
		question:       question,
		passages:       passages,
		stream:         stream,
	}, nil
}

// Delete removes the conversation record and resets the session to a fresh
// conversation on the same collection. Deleting never touches the referenced
// collection. An in-flight title task for the deleted conversation degrades
// to a no-op write.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	id := s.conv.ID
	collection := s.collection
	s.mu.Unlock()

	// The session state only moves once the record is actually gone; a
	// failed delete leaves the conversation usable.
	if err := s.service.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "id", id)

	// An in-flight turn for the deleted conversation may still be streaming;
	// its result is dropped in finishTurn because the id no longer matches.
	fresh := s.service.freshSession(collection)
	s.mu.Lock()
	s.conv = fresh.conv
	s.state = StateNew
	s.logger = fresh.logger
	s.mu.Unlock()
	return nil
}

// SwitchCollection grounds the session in another collection. History is not
// carried across collections: the session moves to a fresh conversation.
func (s *Session) SwitchCollection(ctx context.Context, collection string) error {
	if _, err := s.service.store.GetCollectionByName(ctx, collection); err != nil {
		return err
	}
	fresh := s.service.freshSession(collection)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return fmt.Errorf("a turn is still in flight: %w", domain.ErrValidation)
	}
	s.conv = fresh.conv
	s.collection = collection
	s.state = StateNew
	s.logger = fresh.logger
	return nil
}

// spawnTitleTask starts the fire-and-forget title derivation. The goroutine
// holds only the conversation id and the question; its single effect is a
// field-level title write, which is harmless whenever it lands.
func (s *Session) spawnTitleTask(conversationID, question string) {
	logger := s.logger
	service := s.service
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()
		derived := service.titles.Derive(ctx, question)
		if err := service.store.UpdateConversationTitle(ctx, conversationID, derived); err != nil {
			logger.Warn("title update failed", "error", err)
			return
		}
		logger.Debug("title set", "title", derived)
	}()
}

// finishTurn appends the completed turn to history and persists the whole
// record. Called by Turn once the stream was fully consumed. A failed
// persist leaves the conversation without the turn, in memory and in the
// store alike.
func (s *Session) finishTurn(ctx context.Context, conversationID, question, answer string) error {
	s.mu.Lock()
	if s.state == StateClosed || s.conv.ID != conversationID {
		// The conversation this turn belonged to was deleted or replaced
		// while the answer streamed; drop the result.
		s.inFlight = false
		s.mu.Unlock()
		return nil
	}
	record := *s.conv
	record.Messages = append([]domain.Message(nil), s.conv.Messages...)
	record.Append(domain.RoleUser, question)
	record.Append(domain.RoleAssistant, answer)
	s.mu.Unlock()

	if err := s.service.store.UpsertConversation(ctx, &record); err != nil {
		s.failTurn()
		return err
	}

	s.mu.Lock()
	s.conv = &record
	s.state = StateActive
	s.inFlight = false
	s.mu.Unlock()
	s.logger.Debug("turn persisted", "messages", len(record.Messages))
	return nil
}

// failTurn releases the turn slot without touching history or the store.
func (s *Session) failTurn() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
