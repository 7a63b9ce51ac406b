// Package memory provides in-memory implementations of the persistence
// ports. Nothing survives process exit; intended for tests and dry
// runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Store implements the persistence interfaces.
var (
	_ driven.IndexStore      = (*Store)(nil)
	_ driven.CheckpointStore = (*Store)(nil)
	_ driven.HashStore       = (*Store)(nil)
)

// Store keeps index entries, document checkpoints and seen hashes in
// maps. Safe for concurrent use. The metric is always cosine.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]domain.IndexEntry
	documents map[string]domain.Document
	hashes    map[uint64]string
	dimension int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries:   make(map[string]domain.IndexEntry),
		documents: make(map[string]domain.Document),
		hashes:    make(map[uint64]string),
	}
}

// Upsert adds or replaces an entry. The first upsert fixes the vector
// dimension.
func (s *Store) Upsert(_ context.Context, entry *domain.IndexEntry) error {
	if entry == nil || entry.ChunkID == "" || len(entry.Vector) == 0 {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = len(entry.Vector)
	} else if len(entry.Vector) != s.dimension {
		return fmt.Errorf("got %d, index has %d: %w", len(entry.Vector), s.dimension, domain.ErrDimensionMismatch)
	}

	s.entries[entry.ChunkID] = *entry
	return nil
}

// Get retrieves an entry by chunk ID.
func (s *Store) Get(_ context.Context, chunkID string) (*domain.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// List returns all entries ordered by chunk ID.
func (s *Store) List(_ context.Context) ([]domain.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.IndexEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChunkID < entries[j].ChunkID })
	return entries, nil
}

// Count returns the number of entries.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Query scores every entry by cosine similarity and returns the top k,
// ties broken by chunk ID ascending.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]driven.IndexHit, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, domain.ErrInvalidInput
	}

	s.mu.RLock()
	if s.dimension != 0 && len(vector) != s.dimension {
		s.mu.RUnlock()
		return nil, fmt.Errorf("got %d, index has %d: %w", len(vector), s.dimension, domain.ErrDimensionMismatch)
	}
	s.mu.RUnlock()

	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.IndexHit, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, driven.IndexHit{
			Entry: entry,
			Score: domain.CosineSimilarity(vector, entry.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.ChunkID < hits[j].Entry.ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Rebuild discards all entries, checkpoints and hashes.
func (s *Store) Rebuild(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]domain.IndexEntry)
	s.documents = make(map[string]domain.Document)
	s.hashes = make(map[uint64]string)
	s.dimension = 0
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// SaveDocument stores or updates a document checkpoint.
func (s *Store) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *doc
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.documents[doc.ID] = stored
	return nil
}

// GetDocument retrieves a document checkpoint by ID.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns all document checkpoints ordered by path.
func (s *Store) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// LoadHashes returns a copy of the recorded hash set.
func (s *Store) LoadHashes(_ context.Context) (map[uint64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint64]string, len(s.hashes))
	for h, id := range s.hashes {
		out[h] = id
	}
	return out, nil
}

// SaveHashes merges the given hash set into the store.
func (s *Store) SaveHashes(_ context.Context, hashes map[uint64]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, id := range hashes {
		s.hashes[h] = id
	}
	return nil
}
