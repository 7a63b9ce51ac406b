package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func entryOf(chunkID string, vector []float32) *domain.IndexEntry {
	return &domain.IndexEntry{
		ChunkID:    chunkID,
		DocumentID: "doc",
		Text:       "text",
		Vector:     vector,
	}
}

func TestUpsertGetCount(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, entryOf("a-0000", []float32{1, 0})))

	got, err := store.Get(ctx, "a-0000")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Vector)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDimensionFixedByFirstUpsert(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, entryOf("a-0000", []float32{1, 2, 3})))
	err := store.Upsert(ctx, entryOf("b-0000", []float32{1}))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestQueryOrdersAndLimits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, entryOf("a-0000", []float32{1, 0})))
	require.NoError(t, store.Upsert(ctx, entryOf("a-0001", []float32{0, 1})))
	require.NoError(t, store.Upsert(ctx, entryOf("a-0002", []float32{1, 1})))

	hits, err := store.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a-0000", hits[0].Entry.ChunkID)
	assert.Equal(t, "a-0002", hits[1].Entry.ChunkID)
}

func TestRebuildResets(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, entryOf("a-0000", []float32{1, 2})))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "d", Path: "/p"}))
	require.NoError(t, store.SaveHashes(ctx, map[uint64]string{1: "a-0000"}))

	require.NoError(t, store.Rebuild(ctx))

	count, _ := store.Count(ctx)
	assert.Zero(t, count)
	docs, _ := store.ListDocuments(ctx)
	assert.Empty(t, docs)
	hashes, _ := store.LoadHashes(ctx)
	assert.Empty(t, hashes)

	// New dimension accepted after rebuild.
	assert.NoError(t, store.Upsert(ctx, entryOf("b-0000", []float32{1, 2, 3})))
}

func TestCheckpointsAndHashes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "d1", Path: "/b.pdf", Format: domain.FormatPDF, Status: domain.StatusIndexed,
	}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "d2", Path: "/a.pdf", Format: domain.FormatPDF, Status: domain.StatusFailed,
	}))

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "/a.pdf", docs[0].Path)

	require.NoError(t, store.SaveHashes(ctx, map[uint64]string{9: "d1-0000"}))
	hashes, err := store.LoadHashes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d1-0000", hashes[9])
}
