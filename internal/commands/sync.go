package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bankpull-dev/bankpull/internal/config"
	"github.com/bankpull-dev/bankpull/internal/history"
	"github.com/bankpull-dev/bankpull/internal/logger"
	"github.com/bankpull-dev/bankpull/internal/parser"
	"github.com/bankpull-dev/bankpull/internal/pipeline"
)

func newSyncCommand() *cobra.Command {
	var workspace string
	var noLedger bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Parse dropped statements, write artifacts, and push to the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(workspace, !noLedger)
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "workspace directory")
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "skip the ledger import step")

	return cmd
}

func runSync(workspace string, syncLedger bool) error {
	log := logger.New()

	cfg, err := config.Load(filepath.Join(workspace, "bankpull.yaml"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if syncLedger {
		if err := cfg.ValidateLedger(); err != nil {
			return err
		}
	}

	started := time.Now()
	result, runErr := pipeline.New(cfg, log).Run(context.Background(), workspace, syncLedger)
	if result == nil {
		return runErr
	}

	archiveProcessed(workspace, result, syncLedger, log)

	if cfg.Workspace.HistoryDB != "" {
		if err := recordRun(cfg, workspace, started, result, runErr); err != nil {
			log.Warn().Err(err).Msg("could not record run history")
		}
	}

	printSummary(result)

	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}
	return nil
}

// archiveProcessed moves cleanly parsed statements out of the drop
// directory. When the ledger step failed, nothing moves: the statements
// it never got through must still be there for the next run to resubmit.
func archiveProcessed(workspace string, result *pipeline.Result, syncLedger bool, log zerolog.Logger) {
	if syncLedger && result.LedgerErr != nil {
		return
	}
	for _, src := range result.Sources {
		if src.Err != nil {
			continue
		}
		if err := parser.MarkProcessed(workspace, src.File); err != nil {
			log.Warn().Err(err).Str("file", src.File).Msg("could not archive statement")
		}
	}
}

func recordRun(cfg *config.Config, workspace string, started time.Time, result *pipeline.Result, runErr error) error {
	store, err := history.Open(filepath.Join(workspace, cfg.Workspace.HistoryDB))
	if err != nil {
		return err
	}
	defer store.Close()

	run := history.Run{
		ID:           history.NewRunID(),
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Transactions: len(result.Transactions),
		Status:       runStatus(result, runErr),
	}

	outcomes := make([]history.AccountOutcome, 0, len(result.Accounts))
	for _, a := range result.Accounts {
		o := history.AccountOutcome{
			RunID:     run.ID,
			Account:   a.Source,
			Submitted: a.Submitted,
			Added:     a.Added,
			Updated:   a.Updated,
		}
		if a.Err != nil {
			o.Error = a.Err.Error()
		}
		outcomes = append(outcomes, o)
	}

	return store.RecordRun(run, outcomes)
}

func runStatus(result *pipeline.Result, runErr error) string {
	if runErr == nil {
		return "ok"
	}
	for _, src := range result.Sources {
		if src.Err == nil {
			return "partial"
		}
	}
	for _, a := range result.Accounts {
		if a.Err == nil {
			return "partial"
		}
	}
	return "failed"
}

func printSummary(result *pipeline.Result) {
	for _, src := range result.Sources {
		if src.Err != nil {
			fmt.Printf("  %-30s FAILED: %v\n", src.File, src.Err)
			continue
		}
		fmt.Printf("  %-30s %d transactions\n", src.File, src.Count)
	}
	for _, a := range result.Accounts {
		if a.Err != nil {
			fmt.Printf("  %-30s import FAILED: %v\n", a.Source, a.Err)
			continue
		}
		fmt.Printf("  %-30s %d submitted, %d added, %d updated\n", a.Source, a.Submitted, a.Added, a.Updated)
	}
	fmt.Printf("Total: %d transactions\n", len(result.Transactions))
}
