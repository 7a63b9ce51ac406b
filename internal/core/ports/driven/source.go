package driven

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// DocumentSource is the interface to the external file-acquisition
// collaborator: something that can enumerate source documents and hand
// over their bytes. The pipeline never walks the filesystem itself.
type DocumentSource interface {
	// List enumerates the available documents with stable identifiers
	// and inferred formats.
	List(ctx context.Context) ([]domain.SourceRef, error)

	// Read returns the raw bytes for one document.
	Read(ctx context.Context, ref domain.SourceRef) ([]byte, error)
}
