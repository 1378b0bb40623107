package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"veil-chat/go-handoff/internal/exchange"
)

func watchCmd() *cobra.Command {
	var fromSeq int64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream exchange transitions as they happen",
		Long: "Polls the daemon's event buffer and prints every state " +
			"transition until interrupted. Use --from-seq to replay " +
			"buffered events first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cursor := fromSeq
			for {
				events, err := client.Events(ctx, cursor)
				if err != nil {
					return err
				}
				for _, ev := range events {
					printEvent(ev)
					cursor = ev.Seq
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		},
	}
	cmd.Flags().Int64Var(&fromSeq, "from-seq", 0, "replay buffered events after this sequence number")
	return cmd
}

func printEvent(ev exchange.Event) {
	line := fmt.Sprintf("%s  seq=%d  phase=%s",
		ev.Timestamp.Format(time.RFC3339), ev.Seq, ev.State.Phase)
	if ev.State.Failure != nil {
		line += fmt.Sprintf("  failure=%s (%s)", ev.State.Failure.Kind, ev.State.Failure.Message)
	}
	fmt.Println(line)
}
