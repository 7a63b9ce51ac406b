// Package chunker provides a fixed-size sliding-window chunking
// processor. Windows are measured in runes so multi-byte scripts chunk
// the same as ASCII, and chunk identifiers are deterministic so
// re-running over unchanged input reproduces the same IDs.
package chunker

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 200

// segmentSeparator joins segment texts before windowing.
const segmentSeparator = "\n\n"

// Processor splits normalized segments into fixed-size chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// span maps a rune range of the joined text back to its segment index.
type span struct {
	start, end int // rune offsets, end exclusive
	segment    int
}

// Process splits the segments' joined text into overlapping chunks.
// Empty segments contribute nothing; a document whose segments are all
// empty yields zero chunks.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	joined, spans := join(segments)
	if len(joined) == 0 {
		return nil, nil
	}

	step := p.chunkSize - p.overlap
	chunks := make([]domain.Chunk, 0, len(joined)/step+1)

	seq := 0
	for start := 0; start < len(joined); start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end > len(joined) {
			end = len(joined)
		}

		text := strings.TrimSpace(string(joined[start:end]))
		if text == "" {
			if end == len(joined) {
				break
			}
			continue
		}

		chunk := domain.Chunk{
			ID:           domain.ChunkID(doc.ID, seq),
			DocumentID:   doc.ID,
			Text:         text,
			SegmentStart: segmentAt(spans, start),
			SegmentEnd:   segmentAt(spans, end-1),
			Length:       end - start,
			Hash:         xxhash.Sum64String(text),
		}
		chunks = append(chunks, chunk)
		seq++

		if end == len(joined) {
			break
		}
	}

	return chunks, nil
}

// join concatenates non-empty segment texts with a separator and
// records which rune range each segment occupies.
func join(segments []domain.Segment) ([]rune, []span) {
	var (
		joined []rune
		spans  []span
	)

	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		if len(joined) > 0 {
			joined = append(joined, []rune(segmentSeparator)...)
		}

		start := len(joined)
		joined = append(joined, []rune(seg.Text)...)
		spans = append(spans, span{start: start, end: len(joined), segment: seg.Index})
	}

	return joined, spans
}

// segmentAt returns the segment index owning the given rune offset.
// Offsets inside a separator belong to the preceding segment.
func segmentAt(spans []span, offset int) int {
	for i, s := range spans {
		if offset < s.start {
			return spans[i-1].segment
		}
		if offset < s.end {
			return s.segment
		}
	}
	return spans[len(spans)-1].segment
}
