// Package image handles standalone image documents. Images carry no
// native text layer, so extraction produces one empty segment flagged
// for the OCR fallback.
package image

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles standalone images.
type Extractor struct{}

// New creates an image extractor.
func New() *Extractor {
	return &Extractor{}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatImage
}

// Extract returns a single OCR-pending segment for the image.
func (e *Extractor) Extract(_ context.Context, doc *domain.SourceDocument) ([]domain.Segment, error) {
	if doc == nil || len(doc.Content) == 0 {
		return nil, domain.ErrInvalidInput
	}

	return []domain.Segment{{
		Index:    0,
		Kind:     domain.KindImage,
		NeedsOCR: true,
	}}, nil
}
