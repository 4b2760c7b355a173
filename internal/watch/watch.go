// Package watch streams a session's phase events to a writer, backing the
// `moot watch` command.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/moot/pkg/blackboard"
)

// Stream subscribes to phase events and writes one formatted line per
// event until the context is cancelled or the subscription fails.
// An empty sessionID streams every session on the instance.
func Stream(ctx context.Context, client *blackboard.Client, sessionID string, out io.Writer) error {
	sub, err := client.SubscribePhaseEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to phase events: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			return fmt.Errorf("phase event subscription failed: %w", err)

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if sessionID != "" && event.SessionID != sessionID {
				continue
			}
			fmt.Fprintln(out, FormatEvent(event))
		}
	}
}

// FormatEvent renders one phase event as a watch line.
func FormatEvent(e *blackboard.PhaseEvent) string {
	ts := time.UnixMilli(e.AtMs).Format("15:04:05")
	line := fmt.Sprintf("%s  %-14s %-18s round=%d", ts, e.Phase, e.Event, e.Iteration)
	for k, v := range e.Detail {
		line += fmt.Sprintf(" %s=%s", k, v)
	}
	return line
}
