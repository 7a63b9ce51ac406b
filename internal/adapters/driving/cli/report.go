package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/artifact"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the report of the last indexing run",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	if cfg == nil || cfg.Artifact.ReportPath == "" {
		return errors.New("no report path configured (set artifact.report_path)")
	}

	report, err := artifact.ReadReport(cfg.Artifact.ReportPath)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errors.New("no run report found, run `corpus index` first")
		}
		return err
	}

	if reportJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printReport(cmd, report)
	return nil
}
