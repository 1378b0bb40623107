package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Abort the exchange in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := client.Cancel(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Exchange cancelled (phase %s)\n", state.Phase)
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return the exchange to idle, clearing any failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := client.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Exchange reset (phase %s)\n", state.Phase)
			return nil
		},
	}
}
