// Package postprocessors turns extracted segments into index-ready
// chunks: normalization first, then sliding-window chunking.
package postprocessors

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/normalizer"
)

// Ensure Pipeline implements the interface.
var _ driven.TextPipeline = (*Pipeline)(nil)

// Pipeline chains the normalizer and the chunker.
type Pipeline struct {
	normalizer *normalizer.Processor
	chunker    *chunker.Processor
}

// NewPipeline creates a text pipeline from the given stages.
func NewPipeline(n *normalizer.Processor, c *chunker.Processor) *Pipeline {
	return &Pipeline{normalizer: n, chunker: c}
}

// Process normalizes the segments and chunks the result.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	cleaned := p.normalizer.Process(ctx, segments)
	return p.chunker.Process(ctx, doc, cleaned)
}
