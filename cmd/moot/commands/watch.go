package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/moot/internal/printer"
	"github.com/dyluth/moot/internal/watch"
	"github.com/spf13/cobra"
)

var watchSessionID string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream a session's phase events",
	Long: `Stream phase events for a running session to the terminal.

Examples:
  # Watch one session
  moot watch --session my-session

  # Watch every session on the instance
  moot watch`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchSessionID, "session", "s", "", "Session ID (all sessions if omitted)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := connect(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Step("Watching phase events (Ctrl-C to stop)...\n")
	return watch.Stream(ctx, client, watchSessionID, os.Stdout)
}
