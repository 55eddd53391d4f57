package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bankpull-dev/bankpull/internal/config"
	"github.com/bankpull-dev/bankpull/internal/logger"
	"github.com/bankpull-dev/bankpull/internal/pipeline"
)

func newExportCommand() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Parse dropped statements and write export artifacts only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(workspace)
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "workspace directory")

	return cmd
}

func runExport(workspace string) error {
	log := logger.New()

	cfg, err := config.Load(filepath.Join(workspace, "bankpull.yaml"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	result, runErr := pipeline.New(cfg, log).Run(context.Background(), workspace, false)
	if result == nil {
		return runErr
	}

	printSummary(result)

	if runErr != nil {
		return fmt.Errorf("export failed: %w", runErr)
	}
	return nil
}
