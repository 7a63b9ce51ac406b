package driven

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// TextPipeline turns a document's extracted segments into chunks.
// Implementations chain normalization (whitespace, control characters,
// boilerplate removal) and sliding-window chunking.
type TextPipeline interface {
	// Process normalizes the segments in order and splits the result
	// into bounded, overlapping chunks with deterministic IDs.
	// A document whose normalized text is empty yields zero chunks;
	// that is not an error.
	Process(ctx context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Chunk, error)
}
