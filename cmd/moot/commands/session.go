package commands

import (
	"context"
	"time"

	"github.com/dyluth/moot/internal/printer"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	pauseSessionID string
	stopSessionID  string
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause a running session at its next round boundary",
	Long: `Pause a running session. The engine observes the pause at the start
of its next round and exits cleanly; all graph and observation state
committed so far stays on the blackboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSessionStatus(pauseSessionID, blackboard.SessionStatusPaused)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running session at its next round boundary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSessionStatus(stopSessionID, blackboard.SessionStatusStopped)
	},
}

func init() {
	pauseCmd.Flags().StringVarP(&pauseSessionID, "session", "s", "", "Session ID (required)")
	pauseCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(pauseCmd)

	stopCmd.Flags().StringVarP(&stopSessionID, "session", "s", "", "Session ID (required)")
	stopCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(stopCmd)
}

func setSessionStatus(sessionID string, status blackboard.SessionStatus) error {
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

	state, err := client.GetSessionState(ctx, sessionID)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return printer.Error("Unknown session", "No session state found for "+sessionID, []string{
				"Check the session ID against 'moot run' output",
			})
		}
		return err
	}

	if state.Status == blackboard.SessionStatusCompleted || state.Status == blackboard.SessionStatusMaxIterations {
		printer.Warning("Session %s already finished (%s)\n", sessionID, state.Status)
		return nil
	}

	state.Status = status
	state.UpdatedAtMs = time.Now().UnixMilli()
	if err := client.PutSessionState(ctx, state); err != nil {
		return err
	}

	printer.Success("Session %s marked %s; the engine exits at its next round boundary\n", sessionID, status)
	return nil
}
