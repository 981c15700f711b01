package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(filepath.Join(t.TempDir(), "docchat.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, st.Close()) })
	return st
}

func TestConversationRoundTrip(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	conv := &domain.Conversation{
		ID:             "conv-1",
		Title:          "Goroutine leaks",
		CollectionName: "go-docs",
	}
	conv.Append(domain.RoleUser, "What is a goroutine leak?")
	conv.Append(domain.RoleAssistant, "A goroutine that never exits.")

	require.NoError(t, st.UpsertConversation(ctx, conv))

	got, err := st.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Goroutine leaks", got.Title)
	assert.Equal(t, "go-docs", got.CollectionName)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "What is a goroutine leak?", got.Messages[0].Text)
	assert.Equal(t, domain.RoleAssistant, got.Messages[1].Role)
}

func TestGetConversationNotFound(t *testing.T) {
	st := setupTestStore(t)

	_, err := st.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertPreservesTitleOnEmptyIncoming(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	// Placeholder lands first, then the title task, then a turn persist with
	// an empty title. The stored title must survive the last write.
	placeholder := &domain.Conversation{ID: "conv-2", CollectionName: "go-docs"}
	require.NoError(t, st.UpsertConversation(ctx, placeholder))
	require.NoError(t, st.UpdateConversationTitle(ctx, "conv-2", "Channel basics"))

	placeholder.Append(domain.RoleUser, "How do channels work?")
	placeholder.Append(domain.RoleAssistant, "They synchronize goroutines.")
	require.NoError(t, st.UpsertConversation(ctx, placeholder))

	got, err := st.GetConversation(ctx, "conv-2")
	require.NoError(t, err)
	assert.Equal(t, "Channel basics", got.Title)
	assert.Len(t, got.Messages, 2)
}

func TestUpsertNonEmptyTitleWins(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{ID: "conv-3", Title: "Old"}))
	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{ID: "conv-3", Title: "New"}))

	got, err := st.GetConversation(ctx, "conv-3")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
}

func TestListConversationsOrderAndFilter(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{
		ID: "old", CollectionName: "a", UpdatedAt: base.Add(-2 * time.Hour),
	}))
	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{
		ID: "new", CollectionName: "a", UpdatedAt: base,
	}))
	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{
		ID: "other", CollectionName: "b", UpdatedAt: base.Add(-time.Hour),
	}))

	all, err := st.ListConversations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "other", all[1].ID)
	assert.Equal(t, "old", all[2].ID)

	filtered, err := st.ListConversations(ctx, "a")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "new", filtered[0].ID)
	assert.Equal(t, "old", filtered[1].ID)
}

func TestDeleteConversation(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{ID: "gone"}))
	require.NoError(t, st.DeleteConversation(ctx, "gone"))

	_, err := st.GetConversation(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, st.DeleteConversation(ctx, "gone"))
}

func TestTitleUpdateAfterDeleteIsNoOp(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertConversation(ctx, &domain.Conversation{ID: "racy"}))
	require.NoError(t, st.DeleteConversation(ctx, "racy"))

	// The detached title task may land after deletion; it must not resurrect
	// the record.
	require.NoError(t, st.UpdateConversationTitle(ctx, "racy", "Too late"))

	_, err := st.GetConversation(ctx, "racy")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveCollectionAndCollision(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	c := &domain.Collection{ID: "id-1", Name: "go-docs", SourceURL: "https://go.dev/doc", FileCount: 12}
	require.NoError(t, st.SaveCollection(ctx, c, false))

	got, err := st.GetCollectionByName(ctx, "go-docs")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, 12, got.FileCount)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	// Same name without overwrite is rejected before any write.
	dup := &domain.Collection{ID: "id-2", Name: "go-docs", FileCount: 3}
	err = st.SaveCollection(ctx, dup, false)
	assert.ErrorIs(t, err, domain.ErrValidation)

	unchanged, err := st.GetCollectionByName(ctx, "go-docs")
	require.NoError(t, err)
	assert.Equal(t, "id-1", unchanged.ID)

	// With overwrite the record is replaced.
	require.NoError(t, st.SaveCollection(ctx, dup, true))
	replaced, err := st.GetCollectionByName(ctx, "go-docs")
	require.NoError(t, err)
	assert.Equal(t, "id-2", replaced.ID)
	assert.Equal(t, 3, replaced.FileCount)
}

func TestSaveCollectionConcurrentSingleWinner(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = st.SaveCollection(ctx, &domain.Collection{
				ID:   fmt.Sprintf("id-%d", i),
				Name: "contested",
			}, false)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrValidation)
		}
	}
	assert.Equal(t, 1, wins)

	_, err := st.GetCollectionByName(ctx, "contested")
	assert.NoError(t, err)
}

func TestSaveCollectionEmptyName(t *testing.T) {
	st := setupTestStore(t)

	err := st.SaveCollection(context.Background(), &domain.Collection{ID: "x"}, false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListAndDeleteCollections(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, st.SaveCollection(ctx, &domain.Collection{
		ID: "a", Name: "alpha", CreatedAt: now.Add(-time.Hour),
	}, false))
	require.NoError(t, st.SaveCollection(ctx, &domain.Collection{
		ID: "b", Name: "beta", CreatedAt: now,
	}, false))

	collections, err := st.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, "beta", collections[0].Name)
	assert.Equal(t, "alpha", collections[1].Name)

	require.NoError(t, st.DeleteCollection(ctx, "b"))
	_, err = st.GetCollectionByName(ctx, "beta")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
