// Package docs reads collection documents from the local documents root.
// Each collection is a directory of .md/.txt files written by an external
// scraping collaborator; this package only ever reads them.
package docs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docchat/internal/domain"
)

// CollectionInfo describes an on-disk collection directory.
type CollectionInfo struct {
	Name      string
	Path      string
	FileCount int
}

// Source loads documents for named collections from a root directory.
type Source struct {
	root   string
	logger *slog.Logger
}

// NewSource creates a Source over the given documents root.
func NewSource(root string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{root: root, logger: logger}
}

// Root returns the documents root directory.
func (s *Source) Root() string { return s.root }

// Load reads all documents of a collection, sorted by filename for stable
// ordering. Returns domain.ErrNotFound if the collection directory does not
// exist or holds no documents.
func (s *Source) Load(ctx context.Context, collection string) ([]domain.Document, error) {
	dir := filepath.Join(s.root, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("collection %q: %w", collection, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading collection %q: %w", collection, err)
	}

	var documents []domain.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !isDocumentFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", path, err)
		}
		documents = append(documents, domain.Document{
			ID:      hashString(path),
			Path:    path,
			Content: string(data),
		})
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("collection %q has no documents: %w", collection, domain.ErrNotFound)
	}

	sort.Slice(documents, func(i, j int) bool { return documents[i].Path < documents[j].Path })
	s.logger.Debug("loaded collection documents", "collection", collection, "count", len(documents))
	return documents, nil
}

// CountFiles returns the number of document files in a collection directory.
// A missing directory counts as zero.
func (s *Source) CountFiles(collection string) int {
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && isDocumentFile(entry.Name()) {
			count++
		}
	}
	return count
}

// ListCollections scans the documents root for directories that contain at
// least one document file.
func (s *Source) ListCollections() ([]CollectionInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading documents root: %w", err)
	}

	var infos []CollectionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count := s.CountFiles(entry.Name())
		if count == 0 {
			continue
		}
		infos = append(infos, CollectionInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(s.root, entry.Name()),
			FileCount: count,
		})
	}
	return infos, nil
}

// Remove deletes a collection's backing document directory.
func (s *Source) Remove(collection string) error {
	if collection == "" {
		return fmt.Errorf("empty collection name: %w", domain.ErrValidation)
	}
	return os.RemoveAll(filepath.Join(s.root, collection))
}

func isDocumentFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".txt")
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
