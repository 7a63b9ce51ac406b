package cli

import (
	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Discard the index and reprocess every document",
	Long: `Drops all index entries, document checkpoints and seen chunk
hashes, then runs a full indexing pass. Equivalent to ` + "`corpus index --rebuild`" + `.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		indexRebuild = true
		defer func() { indexRebuild = false }()
		return runIndex(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
