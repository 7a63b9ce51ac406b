package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/logger"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index continuously as the source directory changes",
	Long: `Runs an initial indexing pass, then watches the source directory
and re-indexes whenever files change. Already indexed documents are
skipped on each pass, so only new or reset documents are processed.
Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before re-indexing after a change")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if indexerService == nil || source == nil {
		return errors.New("indexer service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := indexerService.Run(ctx); err != nil {
		return err
	}

	changes, err := source.Watch(ctx, watchDebounce)
	if err != nil {
		return err
	}

	cmd.Println("Watching for changes...")
	for range changes {
		logger.Info("Change detected, re-indexing")
		report, err := indexerService.Run(ctx)
		if err != nil {
			// A fatal run ends the watch; transient per-document
			// failures are already in the report.
			return err
		}
		cmd.Printf("Re-indexed: %d new, %d skipped\n",
			report.Succeeded+report.Partial, report.Skipped)
	}
	return ctx.Err()
}
