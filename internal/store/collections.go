package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docchat/internal/domain"
)

// SaveCollection inserts a collection record. Names are unique: saving over
// an existing name without overwrite fails with domain.ErrValidation and
// leaves the stored record untouched; with overwrite the old record is
// replaced. The name check and the write are one statement, so concurrent
// registrations of the same name cannot both win.
func (s *Store) SaveCollection(ctx context.Context, c *domain.Collection, overwrite bool) error {
	if c.Name == "" {
		return fmt.Errorf("collection name must not be empty: %w", domain.ErrValidation)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := c.Status
	if status == "" {
		status = domain.StatusCompleted
	}

	if overwrite {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO collections (id, name, source_url, file_count, created_at, status)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				id = excluded.id,
				source_url = excluded.source_url,
				file_count = excluded.file_count,
				created_at = excluded.created_at,
				status = excluded.status`,
			c.ID, c.Name, c.SourceURL, c.FileCount, createdAt.Format(time.RFC3339Nano), status)
		if err != nil {
			return fmt.Errorf("saving collection %q: %w", c.Name, err)
		}
	} else {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO collections (id, name, source_url, file_count, created_at, status)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			c.ID, c.Name, c.SourceURL, c.FileCount, createdAt.Format(time.RFC3339Nano), status)
		if err != nil {
			return fmt.Errorf("saving collection %q: %w", c.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("collection %q already exists: %w", c.Name, domain.ErrValidation)
		}
	}
	s.logger.Info("collection saved", "name", c.Name, "files", c.FileCount)
	return nil
}

// GetCollectionByName loads a collection record by its unique name.
func (s *Store) GetCollectionByName(ctx context.Context, name string) (*domain.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_url, file_count, created_at, status
		FROM collections WHERE name = ?`, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return c, err
}

// ListCollections returns all collection records, newest first.
func (s *Store) ListCollections(ctx context.Context) ([]*domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_url, file_count, created_at, status
		FROM collections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []*domain.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCollection removes a collection record by id. Conversations keep
// their collection_name reference; they simply stop resolving.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting collection %s: %w", id, err)
	}
	s.logger.Debug("collection deleted", "id", id)
	return nil
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	var (
		c         domain.Collection
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.SourceURL, &c.FileCount, &createdAt, &c.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning collection: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}
