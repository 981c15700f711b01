package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docchat/internal/domain"
)

// UpsertConversation writes the whole conversation record. An empty incoming
// title never clears a stored one: the detached title task may have landed
// first, and a later turn persist must not undo it.
func (s *Store) UpsertConversation(ctx context.Context, c *domain.Conversation) error {
	history, err := marshalHistory(c.Messages)
	if err != nil {
		return fmt.Errorf("encoding chat history: %w", err)
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, chat_history, collection_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title = '' THEN conversations.title ELSE excluded.title END,
			chat_history = excluded.chat_history,
			collection_name = excluded.collection_name,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, history, nullable(c.CollectionName), updatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting conversation %s: %w", c.ID, err)
	}
	s.logger.Debug("conversation saved", "id", c.ID, "messages", len(c.Messages))
	return nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, chat_history, collection_name, updated_at
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return c, err
}

// ListConversations returns conversations ordered by updated_at descending.
// A non-empty collection filters to conversations referencing it.
func (s *Store) ListConversations(ctx context.Context, collection string) ([]*domain.Conversation, error) {
	query := `SELECT id, title, chat_history, collection_name, updated_at
		FROM conversations`
	args := []any{}
	if collection != "" {
		query += ` WHERE collection_name = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation record. Deleting an absent id is
// not an error.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	s.logger.Debug("conversation deleted", "id", id)
	return nil
}

// UpdateConversationTitle patches only the title field. It races with turn
// persists and with deletion by design: a patch against a deleted id is a
// silent no-op and never resurrects the record.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("updating title of %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("title update against absent conversation ignored", "id", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		c          domain.Conversation
		history    string
		collection sql.NullString
		updatedAt  string
	)
	if err := row.Scan(&c.ID, &c.Title, &history, &collection, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	messages, err := unmarshalHistory(history)
	if err != nil {
		return nil, fmt.Errorf("decoding chat history: %w", err)
	}
	c.Messages = messages
	c.CollectionName = collection.String
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}

// Chat history is stored as an ordered list of (role, text) pairs.
func marshalHistory(messages []domain.Message) (string, error) {
	pairs := make([][2]string, len(messages))
	for i, m := range messages {
		pairs[i] = [2]string{m.Role, m.Text}
	}
	data, err := json.Marshal(pairs)
	return string(data), err
}

func unmarshalHistory(raw string) ([]domain.Message, error) {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, len(pairs))
	for i, p := range pairs {
		messages[i] = domain.Message{Role: p[0], Text: p[1]}
	}
	return messages, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
