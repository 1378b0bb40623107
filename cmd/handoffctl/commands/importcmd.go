package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"veil-chat/go-handoff/pkg/models"
)

const importWaitTimeout = 30 * time.Second

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [payload]",
		Short: "Submit a scanned or pasted credential payload",
		Long: "Feeds one exported payload to the daemon and waits for the " +
			"authentication verdict. Pass the payload as an argument, or " +
			"pipe it on stdin with no argument (or \"-\").",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if _, err := client.BeginScan(ctx); err != nil {
				return err
			}
			state, err := client.SubmitScan(ctx, payload)
			if err != nil {
				return err
			}
			if state.Phase == models.PhaseImporting {
				state, err = waitForVerdict(ctx)
				if err != nil {
					return err
				}
			}

			switch state.Phase {
			case models.PhaseAuthenticated:
				switch {
				case state.Session != nil && state.Session.Alias != "":
					fmt.Printf("Signed in as %q (account %s)\n", state.Session.Alias, state.Session.AccountID)
				case state.Session != nil:
					fmt.Printf("Signed in (account %s)\n", state.Session.AccountID)
				default:
					fmt.Println("Signed in")
				}
				return nil
			case models.PhaseFailed:
				if state.Failure != nil {
					return fmt.Errorf("import failed (%s): %s", state.Failure.Kind, state.Failure.Message)
				}
				return fmt.Errorf("import failed")
			default:
				return fmt.Errorf("import did not finish (phase %s)", state.Phase)
			}
		},
	}
}

func readPayload(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read payload from stdin: %w", err)
	}
	payload := strings.TrimSpace(string(raw))
	if payload == "" {
		return "", fmt.Errorf("no payload given")
	}
	return payload, nil
}

// waitForVerdict polls the daemon until the one-shot authentication
// settles. The importing phase is transient, so this returns quickly in
// practice; the deadline guards against a wedged daemon.
func waitForVerdict(ctx context.Context) (models.ExchangeState, error) {
	deadline := time.Now().Add(importWaitTimeout)
	for {
		state, err := client.State(ctx)
		if err != nil {
			return state, err
		}
		if state.Phase != models.PhaseImporting {
			return state, nil
		}
		if time.Now().After(deadline) {
			return state, fmt.Errorf("timed out waiting for authentication")
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
