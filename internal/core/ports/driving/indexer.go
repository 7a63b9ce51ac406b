package driving

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// Indexer drives documents from the source through extraction,
// chunking, deduplication and embedding into the index store.
type Indexer interface {
	// Run processes every discovered document to a terminal status and
	// returns the processing report. The report is produced even when
	// the run fails; a fatal error (embedding backend unavailable) is
	// returned alongside it.
	Run(ctx context.Context) (*domain.Report, error)

	// Rebuild discards the index and reprocesses everything.
	Rebuild(ctx context.Context) (*domain.Report, error)

	// Status returns progress for a run in flight.
	Status(ctx context.Context) (*RunStatus, error)
}

// RunStatus is a point-in-time snapshot of a pipeline run.
type RunStatus struct {
	// Running indicates a run is currently in progress.
	Running bool

	// DocumentsProcessed is the count of documents at terminal status.
	DocumentsProcessed int

	// ErrorCount is the number of failed documents so far.
	ErrorCount int
}
