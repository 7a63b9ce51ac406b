package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/artifact"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index documents from the source directory",
	Long: `Walks the configured source directory, extracts text from every
supported document, chunks and embeds it, and writes the result to the
index store. Documents already indexed by a previous run are skipped
unless --rebuild is given.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "discard the index and reprocess everything")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexerService == nil {
		return errors.New("indexer service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var report *domain.Report
	var err error
	if indexRebuild {
		report, err = indexerService.Rebuild(ctx)
	} else {
		report, err = indexerService.Run(ctx)
	}

	if report != nil {
		printReport(cmd, report)
		writeArtifacts(ctx, cmd, report)
	}
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) {
			return fmt.Errorf("embedding backend unavailable, run aborted: %w", err)
		}
		return fmt.Errorf("indexing failed: %w", err)
	}
	return nil
}

func printReport(cmd *cobra.Command, report *domain.Report) {
	cmd.Printf("Run %s finished in %s\n", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	cmd.Printf("  documents: %d attempted, %d indexed, %d partial, %d failed, %d skipped\n",
		report.Attempted, report.Succeeded, report.Partial, report.Failed, report.Skipped)
	cmd.Printf("  chunks: %d produced, %d duplicates suppressed\n",
		report.ChunksProduced, report.DuplicatesSuppressed)

	for _, doc := range report.Documents {
		if doc.Status == domain.StatusFailed || doc.Status == domain.StatusPartial {
			cmd.Printf("  %s: %s (%s)\n", doc.Path, doc.Status, doc.FailureKind)
		}
	}
	if report.FatalError != "" {
		cmd.Printf("  fatal: %s\n", report.FatalError)
	}
}

// writeArtifacts exports the index and the run report when paths are
// configured. Artifact failures do not fail the indexing run.
func writeArtifacts(ctx context.Context, cmd *cobra.Command, report *domain.Report) {
	if cfg == nil {
		return
	}
	if cfg.Artifact.Path != "" && indexStore != nil {
		if err := artifact.WriteIndex(ctx, indexStore, cfg.Artifact.Path); err != nil {
			cmd.PrintErrf("writing index export: %v\n", err)
		}
	}
	if cfg.Artifact.ReportPath != "" {
		if err := artifact.WriteReport(report, cfg.Artifact.ReportPath); err != nil {
			cmd.PrintErrf("writing run report: %v\n", err)
		}
	}
}
