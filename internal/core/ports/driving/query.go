package driving

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// QueryOptions controls result count and filtering.
type QueryOptions struct {
	// K is the maximum number of matches (default from configuration).
	K int

	// MinScore drops matches scoring below it. Zero applies the
	// configured default; a negative value disables the cut-off.
	MinScore float64
}

// QueryService answers free-text queries against the index store.
// It performs no document extraction and needs no filesystem access
// to the raw sources.
type QueryService interface {
	// Query embeds the text, runs similarity lookup and returns ranked
	// matches. Fails with domain.ErrEmptyIndex when the store has zero
	// entries and propagates domain.ErrModelUnavailable from the
	// embedding backend.
	Query(ctx context.Context, text string, opts QueryOptions) ([]domain.Match, error)
}
