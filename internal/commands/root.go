package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankpull-dev/bankpull/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bankpull",
		Short:   "Bank statement normalization and ledger sync",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
