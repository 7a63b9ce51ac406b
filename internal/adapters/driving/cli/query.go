package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
)

const previewLength = 160

var (
	queryTopK     int
	queryMinScore float64
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the index with a free-text query",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of matches (default from config)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "similarity cut-off (default from config, 0 disables)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output matches as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// An explicit --min-score 0 means "no cut-off"; an unset flag means
	// "use the configured default". The service separates the two by sign.
	minScore := queryMinScore
	if minScore == 0 && cmd.Flags().Changed("min-score") {
		minScore = -1
	}

	matches, err := queryService.Query(ctx, args[0], driving.QueryOptions{
		K:        queryTopK,
		MinScore: minScore,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptyIndex) {
			return errors.New("the index is empty, run `corpus index` first")
		}
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding matches: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(matches) == 0 {
		cmd.Println("No matches above the score cut-off.")
		return nil
	}

	for i, match := range matches {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, match.ChunkID, match.Score)
		if match.Method == domain.MethodOCR {
			cmd.Printf("      ocr confidence: %.0f%%\n", match.Confidence)
		}
		cmd.Printf("      %s\n", preview(match.Text))
		cmd.Println()
	}
	return nil
}

// preview collapses the chunk text to a single trimmed line.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "…"
}
