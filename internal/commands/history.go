package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankpull-dev/bankpull/internal/config"
	"github.com/bankpull-dev/bankpull/internal/history"
)

func newHistoryCommand() *cobra.Command {
	var workspace string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(workspace, limit)
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "workspace directory")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")

	return cmd
}

func runHistory(workspace string, limit int) error {
	cfg, err := config.Load(filepath.Join(workspace, "bankpull.yaml"))
	if err != nil {
		return err
	}
	if cfg.Workspace.HistoryDB == "" {
		return fmt.Errorf("workspace.history_db is not configured")
	}

	store, err := history.Open(filepath.Join(workspace, cfg.Workspace.HistoryDB))
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %-7s %4d transactions  (%s)\n",
			run.StartedAt.Format(time.RFC3339), run.Status, run.Transactions, run.ID)

		outcomes, err := store.Outcomes(run.ID)
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if o.Error != "" {
				fmt.Printf("    %-20s FAILED: %s\n", o.Account, o.Error)
				continue
			}
			fmt.Printf("    %-20s %d submitted, %d added, %d updated\n",
				o.Account, o.Submitted, o.Added, o.Updated)
		}
	}
	return nil
}
