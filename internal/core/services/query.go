package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure Resolver implements the interface.
var _ driving.QueryService = (*Resolver)(nil)

// Default query parameters.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.25
)

// Resolver answers free-text queries against the index store. It needs
// only the embedding backend and the store; the raw source files are
// never touched at query time.
type Resolver struct {
	embedder driven.EmbeddingService
	index    driven.IndexStore

	defaultK        int
	defaultMinScore float64
}

// ResolverOption configures the query resolver.
type ResolverOption func(*Resolver)

// WithDefaultTopK sets the result count used when the caller passes
// none.
func WithDefaultTopK(k int) ResolverOption {
	return func(r *Resolver) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

// WithDefaultMinScore sets the similarity cut-off used when the caller
// passes none.
func WithDefaultMinScore(score float64) ResolverOption {
	return func(r *Resolver) {
		r.defaultMinScore = score
	}
}

// NewResolver creates a query resolver.
func NewResolver(embedder driven.EmbeddingService, index driven.IndexStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		embedder:        embedder,
		index:           index,
		defaultK:        DefaultTopK,
		defaultMinScore: DefaultMinScore,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query embeds the text, runs similarity lookup and returns ranked
// matches above the score cut-off.
func (r *Resolver) Query(ctx context.Context, text string, opts driving.QueryOptions) ([]domain.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("query text: %w", domain.ErrInvalidInput)
	}

	k := opts.K
	if k <= 0 {
		k = r.defaultK
	}
	minScore := opts.MinScore
	switch {
	case minScore < 0:
		// Cut-off disabled; even negative-similarity hits pass.
		minScore = math.Inf(-1)
	case minScore == 0:
		minScore = r.defaultMinScore
	}

	count, err := r.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting index entries: %w", err)
	}
	if count == 0 {
		return nil, domain.ErrEmptyIndex
	}

	logger.Section("Query Resolution")
	logger.Debug("Query: %q, k=%d, min score=%.2f", text, k, minScore)

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	matches := make([]domain.Match, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}
		matches = append(matches, domain.Match{
			ChunkID:    hit.Entry.ChunkID,
			DocumentID: hit.Entry.DocumentID,
			Text:       hit.Entry.Text,
			Score:      hit.Score,
			Method:     hit.Entry.Method,
			Confidence: hit.Entry.Confidence,
		})
	}

	logger.Debug("Returning %d of %d hits above cut-off", len(matches), len(hits))
	return matches, nil
}
