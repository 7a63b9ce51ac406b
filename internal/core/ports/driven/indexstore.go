package driven

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// IndexHit is one similarity search result.
type IndexHit struct {
	// Entry is the matched index entry.
	Entry domain.IndexEntry

	// Score is the similarity to the query vector under the store's
	// configured metric.
	Score float64
}

// IndexStore persists the chunk→vector mapping and serves
// nearest-neighbour lookup. Entries are append-only except for
// explicit rebuild, and every committed entry is complete: a crash
// mid-upsert never leaves a queryable entry missing its vector or
// text.
type IndexStore interface {
	// Upsert adds or replaces an entry by chunk ID. The write is
	// atomic per entry and safe under concurrent writers from
	// different documents. Fails with domain.ErrDimensionMismatch when
	// the vector length differs from the store's fixed dimension.
	Upsert(ctx context.Context, entry *domain.IndexEntry) error

	// Get retrieves an entry by chunk ID.
	// Fails with domain.ErrNotFound when absent.
	Get(ctx context.Context, chunkID string) (*domain.IndexEntry, error)

	// List returns all entries ordered by chunk ID.
	List(ctx context.Context) ([]domain.IndexEntry, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)

	// Query returns the k entries most similar to the given vector,
	// ties broken by chunk ID ascending for determinism.
	Query(ctx context.Context, vector []float32, k int) ([]IndexHit, error)

	// Rebuild discards all entries, seen hashes and document
	// checkpoints so a full reprocessing pass regenerates the index.
	Rebuild(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CheckpointStore persists per-document pipeline status so a re-run
// resumes without reprocessing documents that are already indexed.
type CheckpointStore interface {
	// GetDocument retrieves a document checkpoint by ID.
	// Fails with domain.ErrNotFound when the document was never seen.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// SaveDocument stores or updates a document checkpoint.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// ListDocuments returns all document checkpoints.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// HashStore persists the set of accepted chunk hashes across runs.
// The deduplicator loads it at run start and persists it at run end;
// there is no hidden process-wide state.
type HashStore interface {
	// LoadHashes returns the persisted hash→chunkID set.
	LoadHashes(ctx context.Context) (map[uint64]string, error)

	// SaveHashes persists the hash→chunkID set.
	SaveHashes(ctx context.Context, hashes map[uint64]string) error
}
