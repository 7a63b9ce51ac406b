package driven

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// Extractor converts one document format into ordered segments.
// Each extractor handles exactly one variant of the closed format set;
// adding a format means adding an extractor, not ad-hoc branching.
type Extractor interface {
	// Format returns the format this extractor handles.
	Format() domain.Format

	// Extract parses the document bytes into ordered segments.
	// Segment text may be empty; a PDF page below the native-text
	// threshold is returned flagged NeedsOCR instead of finalised.
	// Fails with domain.ErrCorruptInput when the bytes cannot be
	// parsed. Extraction is pure: identical bytes yield identical
	// segments.
	Extract(ctx context.Context, doc *domain.SourceDocument) ([]domain.Segment, error)
}

// ExtractorRegistry dispatches a document to the extractor registered
// for its format tag.
type ExtractorRegistry interface {
	// Extract routes the document to the matching extractor.
	// Fails with domain.ErrUnsupportedFormat when no extractor is
	// registered for the document's format.
	Extract(ctx context.Context, doc *domain.SourceDocument) ([]domain.Segment, error)

	// Register adds an extractor to the registry.
	Register(e Extractor)

	// SupportedFormats returns all formats that can be extracted.
	SupportedFormats() []domain.Format
}
