package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// scan-error exists for scanner front-ends that drive the daemon through
// this CLI: a camera or reader failure is reported here instead of being
// submitted as a payload, so the failure surfaces as scan_error rather
// than malformed_payload.
func scanErrorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-error <reason>",
		Short: "Report a scanner failure during an active scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason := strings.TrimSpace(args[0])
			if reason == "" {
				return fmt.Errorf("reason must not be empty")
			}
			state, err := client.ReportScanError(cmd.Context(), reason)
			if err != nil {
				return err
			}
			if state.Failure != nil {
				fmt.Printf("Recorded scan failure: %s\n", state.Failure.Message)
			}
			return nil
		},
	}
}
