package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"docchat/internal/domain"
)

// Loader supplies the full document set of a collection.
type Loader func(ctx context.Context, collection string) ([]domain.Document, error)

// Cache memoizes one index per collection name for the process lifetime.
// Concurrent requests for the same uncached collection converge on a single
// load and build; a failed build is not cached, so the next request retries.
//
// The cache keys on the collection name only. A collection rebuilt or
// overwritten on disk keeps serving the index built from its earlier
// snapshot until the process restarts.
type Cache struct {
	chunker     domain.Chunker
	newEmbedder func() domain.Embedder
	logger      *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewCache creates an empty index cache. newEmbedder must return a fresh
// embedder per call, because an embedder is prepared against exactly one
// collection corpus.
func NewCache(chunker domain.Chunker, newEmbedder func() domain.Embedder, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		chunker:     chunker,
		newEmbedder: newEmbedder,
		logger:      logger,
		indexes:     make(map[string]*Index),
	}
}

// GetOrBuild returns the cached index for the collection, building it with
// documents from loader on first use. All concurrent callers for the same
// uncached collection observe the same result; build failures are wrapped in
// domain.ErrIndexBuild and shared by every waiter.
func (c *Cache) GetOrBuild(ctx context.Context, collection string, loader Loader) (*Index, error) {
	c.mu.RLock()
	ix, ok := c.indexes[collection]
	c.mu.RUnlock()
	if ok {
		return ix, nil
	}

	v, err, shared := c.group.Do(collection, func() (any, error) {
		// Re-check under the flight: a previous flight may have finished
		// between the read above and this call.
		c.mu.RLock()
		cached, ok := c.indexes[collection]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		documents, err := loader(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("%w: loading documents for %q: %v", domain.ErrIndexBuild, collection, err)
		}
		built, err := Build(ctx, collection, documents, c.chunker, c.newEmbedder())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
		}

		c.mu.Lock()
		c.indexes[collection] = built
		c.mu.Unlock()
		c.logger.Info("index built",
			"collection", collection,
			"documents", len(documents),
			"passages", len(built.passages))
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("index build shared between concurrent callers", "collection", collection)
	}
	return v.(*Index), nil
}

// Get returns the cached index for a collection, if present.
func (c *Cache) Get(collection string) (*Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ix, ok := c.indexes[collection]
	return ix, ok
}
