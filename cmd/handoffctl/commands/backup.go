package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"veil-chat/go-handoff/internal/api"
)

const backupWarning = `A backup blob contains your full signing and encryption keys, protected
only by the passphrase you choose here. Anyone holding both the blob and
the passphrase controls the account. Re-run with --acknowledge-risk to
proceed.`

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore an encrypted credential backup",
	}
	cmd.AddCommand(backupExportCmd(), backupRestoreCmd())
	return cmd
}

func backupExportCmd() *cobra.Command {
	var (
		passphrase  string
		out         string
		acknowledge bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an encrypted credential backup blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !acknowledge {
				return fmt.Errorf("%s", backupWarning)
			}
			blob, err := client.BackupExport(cmd.Context(), api.BackupConsentToken, passphrase)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), blob)
				return nil
			}
			if err := os.WriteFile(out, []byte(blob+"\n"), 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the backup")
	cmd.Flags().StringVar(&out, "out", "-", "output file (\"-\" for stdout)")
	cmd.Flags().BoolVar(&acknowledge, "acknowledge-risk", false, "confirm you understand what the blob contains")
	_ = cmd.MarkFlagRequired("passphrase")
	return cmd
}

func backupRestoreCmd() *cobra.Command {
	var (
		passphrase  string
		acknowledge bool
	)
	cmd := &cobra.Command{
		Use:   "restore [blob-file]",
		Short: "Restore a credential from a backup blob",
		Long: "Reads a backup blob from the given file, or from stdin with " +
			"no argument (or \"-\"), decrypts it with the passphrase and " +
			"installs the credential on this device.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !acknowledge {
				return fmt.Errorf("%s", backupWarning)
			}
			blob, err := readBlob(cmd, args)
			if err != nil {
				return err
			}
			username, err := client.BackupRestore(cmd.Context(), api.BackupConsentToken, passphrase, blob)
			if err != nil {
				return err
			}
			fmt.Printf("Restored credential for %q\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase the backup was written with")
	cmd.Flags().BoolVar(&acknowledge, "acknowledge-risk", false, "confirm you understand what the blob contains")
	_ = cmd.MarkFlagRequired("passphrase")
	return cmd
}

func readBlob(cmd *cobra.Command, args []string) (string, error) {
	var raw []byte
	var err error
	if len(args) == 1 && args[0] != "-" {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", fmt.Errorf("read backup blob: %w", err)
	}
	blob := strings.TrimSpace(string(raw))
	if blob == "" {
		return "", fmt.Errorf("no backup blob given")
	}
	return blob, nil
}
