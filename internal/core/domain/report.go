package domain

import "time"

// DocumentOutcome is one document's terminal result within a run.
type DocumentOutcome struct {
	// DocumentID identifies the document.
	DocumentID string `json:"document_id"`

	// Path is the original source location.
	Path string `json:"path"`

	// Format is the document format.
	Format Format `json:"format"`

	// Status is the terminal status the document reached.
	Status Status `json:"status"`

	// FailureKind names the failure for failed/partial documents
	// (e.g. "unsupported format", "corrupt input").
	FailureKind string `json:"failure_kind,omitempty"`

	// Chunks is the number of index entries the document contributed.
	Chunks int `json:"chunks"`

	// DuplicatesSuppressed counts chunks dropped as duplicates.
	DuplicatesSuppressed int `json:"duplicates_suppressed"`

	// NoContent marks a document with no extractable content.
	NoContent bool `json:"no_content,omitempty"`

	// Skipped marks a document left untouched because a previous run
	// already indexed it.
	Skipped bool `json:"skipped,omitempty"`
}

// Report is the per-run aggregate of document outcomes. It is
// produced exactly once per orchestrator run, even for degenerate
// runs with zero successes, and is immutable after emission.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Attempted counts documents discovered and driven through the
	// pipeline (including skipped ones).
	Attempted int `json:"attempted"`

	// Succeeded counts documents that reached indexed.
	Succeeded int `json:"succeeded"`

	// Partial counts documents indexed with degraded segments.
	Partial int `json:"partial"`

	// Failed counts documents that contributed nothing.
	Failed int `json:"failed"`

	// Skipped counts documents already indexed by a previous run.
	Skipped int `json:"skipped"`

	// ChunksProduced is the total number of new index entries.
	ChunksProduced int `json:"chunks_produced"`

	// DuplicatesSuppressed is the total number of chunks dropped as
	// exact or near duplicates.
	DuplicatesSuppressed int `json:"duplicates_suppressed"`

	// FatalError records a run-fatal condition (embedding backend
	// unreachable); when set, the remaining documents were abandoned.
	FatalError string `json:"fatal_error,omitempty"`

	// Documents lists every document's outcome.
	Documents []DocumentOutcome `json:"documents"`
}

// Add folds one outcome into the aggregates.
func (r *Report) Add(out DocumentOutcome) {
	r.Attempted++
	r.ChunksProduced += out.Chunks
	r.DuplicatesSuppressed += out.DuplicatesSuppressed

	switch {
	case out.Skipped:
		r.Skipped++
	case out.Status == StatusIndexed:
		r.Succeeded++
	case out.Status == StatusPartial:
		r.Partial++
	case out.Status == StatusFailed:
		r.Failed++
	}

	r.Documents = append(r.Documents, out)
}
