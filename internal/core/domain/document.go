package domain

import (
	"fmt"
	"time"
)

// Status tracks a document through the indexing state machine.
// Transitions are driven strictly forward:
//
//	pending → extracting → chunking → embedding → indexed
//
// with failed/partial as alternative terminal states. A re-run starts
// a fresh pass; there are no automatic retries within a run.
type Status string

// Document processing states.
const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusChunking   Status = "chunking"
	StatusEmbedding  Status = "embedding"

	// StatusIndexed means every segment that produced text was embedded
	// and written to the index store.
	StatusIndexed Status = "indexed"

	// StatusPartial means some segments failed or stayed empty (for
	// example OCR was unavailable) but others were indexed.
	StatusPartial Status = "partial"

	// StatusFailed means the document contributed nothing to the index.
	StatusFailed Status = "failed"
)

// Terminal returns true when no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusIndexed || s == StatusPartial || s == StatusFailed
}

// Document is a source document owned by the pipeline orchestrator
// until it reaches a terminal status. The checkpoint store persists it
// so a re-run can skip documents that are already indexed.
type Document struct {
	// ID is the stable identifier derived from the source path.
	ID string

	// Path is the original source location.
	Path string

	// Format is the declared or inferred document format.
	Format Format

	// Status is the current pipeline state.
	Status Status

	// Err holds the failure detail for failed/partial documents.
	Err string

	// NoContent marks a document that extracted and normalized to
	// empty text. This is a success, not a failure.
	NoContent bool

	// UpdatedAt is when the status last changed.
	UpdatedAt time.Time
}

// SourceRef identifies one document offered by a DocumentSource.
type SourceRef struct {
	// ID is the stable document identifier assigned by the source.
	ID string

	// Path is the source location the bytes can be read from.
	Path string

	// Format is inferred by the source (usually from the extension).
	Format Format
}

// SourceDocument is a document's raw bytes handed to an extractor.
type SourceDocument struct {
	// ID is the owning document's identifier.
	ID string

	// Path is the original source location.
	Path string

	// Format selects the extractor.
	Format Format

	// Content is the raw file bytes.
	Content []byte
}

// SegmentKind is the structural unit a segment represents.
type SegmentKind string

// Segment kinds.
const (
	KindPage     SegmentKind = "page"
	KindSheet    SegmentKind = "sheet"
	KindImage    SegmentKind = "image"
	KindDocument SegmentKind = "document"
)

// ExtractionMethod records how a segment's text was recovered.
type ExtractionMethod string

// Extraction methods.
const (
	// MethodNative means the text came from the document's own text layer.
	MethodNative ExtractionMethod = "native"

	// MethodOCR means the text was recovered by optical character
	// recognition from a rasterised page.
	MethodOCR ExtractionMethod = "ocr"
)

// Segment is an ordered unit within a document (PDF page, spreadsheet
// sheet, image) produced by extraction, prior to chunking.
type Segment struct {
	// Index is the zero-based position within the document.
	Index int

	// Kind is the structural unit this segment represents.
	Kind SegmentKind

	// Text is the extracted text, possibly empty.
	Text string

	// Method records how the text was recovered.
	Method ExtractionMethod

	// Confidence is the mean OCR word confidence (0-100).
	// Only meaningful when Method is MethodOCR.
	Confidence float64

	// NeedsOCR flags a segment whose native extraction yielded too
	// little text; the OCR fallback fills it in.
	NeedsOCR bool
}

// Chunk is a bounded span of normalized document text, the unit of
// embedding and retrieval. Chunk IDs are deterministic (document ID +
// sequence), so re-running the pipeline over unchanged input produces
// identical IDs.
type Chunk struct {
	// ID is the deterministic chunk identifier.
	ID string

	// DocumentID links to the owning document.
	DocumentID string

	// Text is the normalized chunk content.
	Text string

	// SegmentStart and SegmentEnd are the inclusive segment index range
	// this chunk spans.
	SegmentStart int
	SegmentEnd   int

	// Length is the chunk length in runes. Never exceeds the
	// configured window size.
	Length int

	// Hash is the content hash of Text, used for deduplication.
	Hash uint64
}

// ChunkID builds the deterministic identifier for a chunk.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s-%04d", documentID, seq)
}

// IndexEntry is the persisted mapping of a chunk to its vector plus
// the extraction metadata retrieval needs. Entries are append-only
// except for explicit rebuild.
type IndexEntry struct {
	// ChunkID is the unique entry key.
	ChunkID string

	// DocumentID links to the source document.
	DocumentID string

	// Text is the chunk content.
	Text string

	// Vector is the embedding. Its length must match the store's
	// configured dimension.
	Vector []float32

	// Format is the source document format.
	Format Format

	// SegmentStart and SegmentEnd mirror the chunk's segment range.
	SegmentStart int
	SegmentEnd   int

	// Method records how the underlying text was extracted.
	Method ExtractionMethod

	// Confidence is the OCR confidence when Method is MethodOCR.
	Confidence float64

	// Duplicates counts near-duplicate chunks suppressed in favour of
	// this entry.
	Duplicates int

	// Hash is the chunk content hash.
	Hash uint64
}

// Match is one ranked result returned by the query resolver.
type Match struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// DocumentID identifies the source document.
	DocumentID string

	// Text is the chunk content.
	Text string

	// Score is the similarity to the query vector.
	Score float64

	// Method records how the chunk's text was extracted.
	Method ExtractionMethod

	// Confidence is the OCR confidence when Method is MethodOCR.
	Confidence float64
}
