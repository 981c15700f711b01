package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func testDocuments() []domain.Document {
	return []domain.Document{
		{ID: "d1", Path: "d1.txt", Content: "alpha beta\ngamma delta"},
	}
}

func newTestCache() *Cache {
	return NewCache(lineChunker{}, func() domain.Embedder {
		return &planeEmbedder{vectors: map[string][]float64{
			"alpha beta":  {1, 0},
			"gamma delta": {0, 1},
		}}
	}, nil)
}

func TestGetOrBuildMemoizes(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	var loads atomic.Int32
	loader := func(ctx context.Context, collection string) ([]domain.Document, error) {
		loads.Add(1)
		return testDocuments(), nil
	}

	first, err := cache.GetOrBuild(ctx, "c", loader)
	require.NoError(t, err)
	second, err := cache.GetOrBuild(ctx, "c", loader)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), loads.Load())

	cached, ok := cache.Get("c")
	require.True(t, ok)
	assert.Same(t, first, cached)
}

func TestGetOrBuildSingleFlightUnderConcurrency(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	var loads atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context, collection string) ([]domain.Document, error) {
		loads.Add(1)
		<-release
		return testDocuments(), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*Index, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrBuild(ctx, "c", loader)
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestGetOrBuildDoesNotCacheFailure(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	boom := errors.New("disk on fire")
	calls := 0
	loader := func(ctx context.Context, collection string) ([]domain.Document, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return testDocuments(), nil
	}

	_, err := cache.GetOrBuild(ctx, "c", loader)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexBuild)

	_, ok := cache.Get("c")
	assert.False(t, ok)

	// The next request retries and succeeds.
	ix, err := cache.GetOrBuild(ctx, "c", loader)
	require.NoError(t, err)
	assert.NotNil(t, ix)
	assert.Equal(t, 2, calls)
}

func TestGetOrBuildKeysPerCollection(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	loader := func(ctx context.Context, collection string) ([]domain.Document, error) {
		return testDocuments(), nil
	}

	a, err := cache.GetOrBuild(ctx, "a", loader)
	require.NoError(t, err)
	b, err := cache.GetOrBuild(ctx, "b", loader)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "a", a.Collection())
	assert.Equal(t, "b", b.Collection())
}
