package commands

import (
	"context"
	"time"

	"github.com/dyluth/moot/internal/agent"
	"github.com/dyluth/moot/internal/orchestrator"
	"github.com/dyluth/moot/internal/printer"
	"github.com/spf13/cobra"
)

var runSessionID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a reconciliation session",
	Long: `Run a full reconciliation session: conference, graph building,
assignment, and analysis, then print the synthesized report.

Prerequisites:
  • A moot.yml (create one with 'moot init')
  • A reachable Redis server (redis.addr in moot.yml)

Examples:
  # Run with a generated session ID
  moot run

  # Resume a named session ID (useful with 'moot watch' in another terminal)
  moot run --session my-session`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "", "Session ID (generated if omitted)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("Configuration error", err.Error(), []string{
			"Run 'moot init' to create a project",
			"Check the path passed with --config",
		})
	}

	client, err := connect(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.Error("Cannot reach Redis", err.Error(), []string{
			"Start Redis, or fix redis.addr in moot.yml",
		})
	}

	generator, err := agent.NewCommandGenerator(cfg.Agent.Command, time.Duration(*cfg.Agent.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}

	engine, err := orchestrator.NewEngine(client, cfg, generator)
	if err != nil {
		return err
	}

	printer.Step("Starting session...\n")
	summary, err := engine.Run(ctx, runSessionID)
	if err != nil {
		return err
	}

	printer.Info("\nSession %s\n", summary.SessionID)
	if !summary.Success {
		printer.Warning("Session interrupted (%s) during %s; state is preserved on the blackboard\n",
			summary.Status, summary.Phase)
		return nil
	}

	if summary.ConsensusReached {
		printer.Success("Consensus after %d analysis rounds\n\n", summary.Iterations)
	} else {
		printer.Warning("Round cap reached without consensus (%d rounds)\n\n", summary.Iterations)
	}
	printer.Report(summary.Report)
	return nil
}
