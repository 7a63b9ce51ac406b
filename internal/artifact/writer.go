// Package artifact writes the run outputs that live outside the index
// store: a JSON Lines export of the index (one record per entry) and a
// JSON report summarising the run. Both are plain files so downstream
// tooling can consume them without opening the database.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// entryRecord is one JSON Lines record of the index export.
type entryRecord struct {
	ChunkID      string                  `json:"chunk_id"`
	DocumentID   string                  `json:"document_id"`
	Text         string                  `json:"text"`
	Vector       []float32               `json:"vector"`
	Format       domain.Format           `json:"format"`
	SegmentStart int                     `json:"segment_start"`
	SegmentEnd   int                     `json:"segment_end"`
	Method       domain.ExtractionMethod `json:"method,omitempty"`
	Confidence   float64                 `json:"confidence,omitempty"`
	Duplicates   int                     `json:"duplicates,omitempty"`
}

// WriteIndex exports every index entry as JSON Lines to path,
// replacing any previous export atomically via a temp file rename.
func WriteIndex(ctx context.Context, store driven.IndexStore, path string) error {
	if path == "" {
		return fmt.Errorf("artifact path: %w", domain.ErrInvalidInput)
	}

	entries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing index entries: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".corpus-export-*")
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	for i := range entries {
		e := &entries[i]
		record := entryRecord{
			ChunkID:      e.ChunkID,
			DocumentID:   e.DocumentID,
			Text:         e.Text,
			Vector:       e.Vector,
			Format:       e.Format,
			SegmentStart: e.SegmentStart,
			SegmentEnd:   e.SegmentEnd,
			Method:       e.Method,
			Confidence:   e.Confidence,
			Duplicates:   e.Duplicates,
		}
		if err := enc.Encode(record); err != nil {
			tmp.Close()
			return fmt.Errorf("encoding entry %s: %w", e.ChunkID, err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing export file: %w", err)
	}

	logger.Info("Exported %d index entries to %s", len(entries), path)
	return nil
}

// WriteReport persists the run report as indented JSON.
func WriteReport(report *domain.Report, path string) error {
	if report == nil {
		return fmt.Errorf("report: %w", domain.ErrInvalidInput)
	}
	if path == "" {
		return fmt.Errorf("report path: %w", domain.ErrInvalidInput)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	logger.Debug("Wrote run report to %s", path)
	return nil
}

// ReadReport loads a previously written run report.
func ReadReport(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("report %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading report: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}
