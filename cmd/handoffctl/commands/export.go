package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Publish the stored credential for another device",
		Long: "Resolves the stored credential and prints it in the chosen " +
			"transport encoding. The daemon stays in the exporting phase " +
			"until you run cancel or reset, so a UI can keep showing the " +
			"payload in the meantime.",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := client.StartExport(cmd.Context(), format)
			if err != nil {
				return err
			}
			if state.Failure != nil {
				return fmt.Errorf("export failed (%s): %s", state.Failure.Kind, state.Failure.Message)
			}
			if state.Encoding == nil {
				return fmt.Errorf("daemon returned no encoding (phase %s)", state.Phase)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Credential ready to hand off (%s encoding):\n", state.Encoding.Format)
			fmt.Fprintln(cmd.OutOrStdout(), state.Encoding.Value)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "raw", "transport encoding: raw | link")
	return cmd
}
