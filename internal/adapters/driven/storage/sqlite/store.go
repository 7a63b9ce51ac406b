package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Supported similarity metrics.
const (
	MetricCosine = "cosine"
	MetricDot    = "dot"
)

// index_meta keys.
const (
	metaDimension = "dimension"
	metaMetric    = "metric"
)

// Ensure Store implements the persistence interfaces.
var (
	_ driven.IndexStore      = (*Store)(nil)
	_ driven.CheckpointStore = (*Store)(nil)
	_ driven.HashStore       = (*Store)(nil)
)

// Store is the SQLite-backed persistence layer: index entries, document
// checkpoints and seen chunk hashes share one database file.
type Store struct {
	db     *sql.DB
	path   string
	metric string

	// mu guards the cached dimension. The first upsert fixes it.
	mu        sync.Mutex
	dimension int
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.corpus/data/index.db. metric is
// MetricCosine or MetricDot; an existing index built with a different
// metric is refused.
func NewStore(dataDir, metric string) (*Store, error) {
	switch metric {
	case "":
		metric = MetricCosine
	case MetricCosine, MetricDot:
	default:
		return nil, fmt.Errorf("unknown metric %q: %w", metric, domain.ErrInvalidInput)
	}

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".corpus", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   dbPath,
		metric: metric,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimension returns the fixed vector dimension, zero before the first
// upsert.
func (s *Store) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimension
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// loadMeta restores the dimension and verifies the metric matches the
// one the existing index was built with.
func (s *Store) loadMeta() error {
	ctx := context.Background()

	if v, ok, err := s.getMeta(ctx, metaDimension); err != nil {
		return err
	} else if ok {
		dim, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("corrupt dimension metadata %q", v)
		}
		s.dimension = dim
	}

	if v, ok, err := s.getMeta(ctx, metaMetric); err != nil {
		return err
	} else if ok {
		if v != s.metric {
			return fmt.Errorf("index was built with metric %q, configured %q: rebuild required", v, s.metric)
		}
		return nil
	}

	return s.setMeta(ctx, metaMetric, s.metric)
}

// getMeta reads one index_meta value.
func (s *Store) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, true, nil
}

// setMeta writes one index_meta value.
func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

// ==================== Index Store ====================

// Upsert adds or replaces an index entry. The first upsert fixes the
// store's vector dimension; later vectors must match it.
func (s *Store) Upsert(ctx context.Context, entry *domain.IndexEntry) error {
	if entry == nil || entry.ChunkID == "" || len(entry.Vector) == 0 {
		return domain.ErrInvalidInput
	}

	if err := s.checkDimension(ctx, len(entry.Vector)); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_entries
			(chunk_id, document_id, text, vector, format, segment_start, segment_end, method, confidence, duplicates, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			text = excluded.text,
			vector = excluded.vector,
			format = excluded.format,
			segment_start = excluded.segment_start,
			segment_end = excluded.segment_end,
			method = excluded.method,
			confidence = excluded.confidence,
			duplicates = excluded.duplicates,
			hash = excluded.hash
	`, entry.ChunkID, entry.DocumentID, entry.Text, float32SliceToBytes(entry.Vector),
		string(entry.Format), entry.SegmentStart, entry.SegmentEnd,
		string(entry.Method), entry.Confidence, entry.Duplicates, int64(entry.Hash))

	if err != nil {
		return fmt.Errorf("saving index entry: %w", err)
	}
	return nil
}

// checkDimension fixes the dimension on first use and rejects vectors
// of any other length afterwards.
func (s *Store) checkDimension(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		if err := s.setMeta(ctx, metaDimension, strconv.Itoa(dim)); err != nil {
			return err
		}
		s.dimension = dim
		return nil
	}
	if dim != s.dimension {
		return fmt.Errorf("got %d, index has %d: %w", dim, s.dimension, domain.ErrDimensionMismatch)
	}
	return nil
}

// Get retrieves an index entry by chunk ID.
func (s *Store) Get(ctx context.Context, chunkID string) (*domain.IndexEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, document_id, text, vector, format, segment_start, segment_end, method, confidence, duplicates, hash
		FROM index_entries WHERE chunk_id = ?
	`, chunkID)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return entry, err
}

// List returns all entries ordered by chunk ID.
func (s *Store) List(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, text, vector, format, segment_start, segment_end, method, confidence, duplicates, hash
		FROM index_entries ORDER BY chunk_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying index entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating index entries: %w", err)
	}

	return entries, nil
}

// Count returns the number of index entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting index entries: %w", err)
	}
	return count, nil
}

// Query scores every entry against the vector under the configured
// metric and returns the top k, ties broken by chunk ID ascending.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]driven.IndexHit, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, domain.ErrInvalidInput
	}

	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("got %d, index has %d: %w", len(vector), dim, domain.ErrDimensionMismatch)
	}

	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.IndexHit, 0, len(entries))
	for _, entry := range entries {
		var score float64
		switch s.metric {
		case MetricDot:
			score = domain.DotProduct(vector, entry.Vector)
		default:
			score = domain.CosineSimilarity(vector, entry.Vector)
		}
		hits = append(hits, driven.IndexHit{Entry: entry, Score: score})
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

// Rebuild discards all entries, checkpoints and seen hashes.
func (s *Store) Rebuild(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		"DELETE FROM index_entries",
		"DELETE FROM documents",
		"DELETE FROM chunk_hashes",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta WHERE key = ?", metaDimension); err != nil {
		return fmt.Errorf("clearing dimension: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}

// ==================== Checkpoint Store ====================

// SaveDocument stores or updates a document checkpoint.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, path, format, status, err, no_content, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			format = excluded.format,
			status = excluded.status,
			err = excluded.err,
			no_content = excluded.no_content,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Path, string(doc.Format), string(doc.Status), doc.Err, doc.NoContent, updatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document checkpoint by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, format, status, err, no_content, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns all document checkpoints ordered by path.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, format, status, err, no_content, updated_at
		FROM documents ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ==================== Hash Store ====================

// LoadHashes returns the persisted hash to chunk-ID set.
func (s *Store) LoadHashes(ctx context.Context) (map[uint64]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT hash, chunk_id FROM chunk_hashes")
	if err != nil {
		return nil, fmt.Errorf("querying chunk hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[uint64]string)
	for rows.Next() {
		var hash int64
		var chunkID string
		if err := rows.Scan(&hash, &chunkID); err != nil {
			return nil, fmt.Errorf("scanning chunk hash: %w", err)
		}
		hashes[uint64(hash)] = chunkID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk hashes: %w", err)
	}

	return hashes, nil
}

// SaveHashes persists the hash to chunk-ID set.
func (s *Store) SaveHashes(ctx context.Context, hashes map[uint64]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_hashes (hash, chunk_id) VALUES (?, ?)
		ON CONFLICT(hash) DO UPDATE SET chunk_id = excluded.chunk_id
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for hash, chunkID := range hashes {
		if _, err := stmt.ExecContext(ctx, int64(hash), chunkID); err != nil {
			return fmt.Errorf("saving chunk hash: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanEntry scans one index entry via the given scan function.
func scanEntry(scan func(...any) error) (*domain.IndexEntry, error) {
	var entry domain.IndexEntry
	var vectorBlob []byte
	var format, method string
	var hash int64

	if err := scan(&entry.ChunkID, &entry.DocumentID, &entry.Text, &vectorBlob,
		&format, &entry.SegmentStart, &entry.SegmentEnd, &method,
		&entry.Confidence, &entry.Duplicates, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning index entry: %w", err)
	}

	entry.Vector = bytesToFloat32Slice(vectorBlob)
	entry.Format = domain.Format(format)
	entry.Method = domain.ExtractionMethod(method)
	entry.Hash = uint64(hash)
	return &entry, nil
}

// scanDocument scans one document checkpoint via the given scan function.
func scanDocument(scan func(...any) error) (*domain.Document, error) {
	var doc domain.Document
	var format, status string

	if err := scan(&doc.ID, &doc.Path, &format, &status, &doc.Err, &doc.NoContent, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Format = domain.Format(format)
	doc.Status = domain.Status(status)
	return &doc, nil
}
