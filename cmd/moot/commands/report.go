package commands

import (
	"context"

	"github.com/dyluth/moot/internal/printer"
	"github.com/dyluth/moot/internal/shape"
	"github.com/dyluth/moot/internal/source"
	"github.com/dyluth/moot/internal/synthesis"
	"github.com/spf13/cobra"
)

var reportSessionID string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-synthesize and print a session's report",
	Long: `Re-synthesize the final report from a session's stored observations.

Synthesis only reads the blackboard, so this works for completed sessions
and for paused ones (on whatever observations exist so far).`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportSessionID, "session", "s", "", "Session ID (required)")
	reportCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := connect(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	cells, err := client.ListObservations(ctx, reportSessionID)
	if err != nil {
		return err
	}

	ps, err := shape.Build(ctx, source.NewRegistry(), cfg.Datasets)
	if err != nil {
		return err
	}

	printer.Report(synthesis.Synthesize(ps, cells))
	return nil
}
