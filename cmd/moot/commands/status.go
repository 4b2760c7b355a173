package commands

import (
	"context"
	"time"

	"github.com/dyluth/moot/internal/printer"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/spf13/cobra"
)

var statusSessionID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a session's current state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusSessionID, "session", "s", "", "Session ID (required)")
	statusCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	state, err := client.GetSessionState(ctx, statusSessionID)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return printer.Error("Unknown session", "No session state found for "+statusSessionID, []string{
				"Check the session ID against 'moot run' output",
			})
		}
		return err
	}

	printer.Info("Session:    %s\n", state.SessionID)
	printer.Info("Phase:      %s\n", state.Phase)
	printer.Info("Status:     %s\n", state.Status)
	printer.Info("Round:      %d\n", state.CurrentIteration)
	printer.Info("Consensus:  %d votes\n", state.ConsensusVotes)
	printer.Info("Graph:      %d complete votes, %d dropped edges\n", state.GraphCompleteVotes, state.EdgeFailures)
	printer.Info("Updated:    %s\n", time.UnixMilli(state.UpdatedAtMs).Format(time.RFC3339))
	return nil
}
