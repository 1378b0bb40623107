package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"veil-chat/go-handoff/internal/adapters/rpc"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health, exchange phase and active account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", client.Addr, err)
			}

			state, err := client.State(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Daemon:  ok (%s)\n", client.Addr)
			fmt.Printf("Phase:   %s\n", state.Phase)
			if state.Failure != nil {
				fmt.Printf("Failure: %s: %s\n", state.Failure.Kind, state.Failure.Message)
			}

			account, err := client.Account(ctx)
			switch {
			case err == nil:
				if account.Alias != "" {
					fmt.Printf("Account: %s (%s)\n", account.ID, account.Alias)
				} else {
					fmt.Printf("Account: %s\n", account.ID)
				}
			case isCode(err, rpc.CodeNoAccount):
				fmt.Println("Account: none")
			default:
				return err
			}
			return nil
		},
	}
}

// isCode reports whether err carries the given daemon error code.
func isCode(err error, code int) bool {
	var callErr *rpc.CallError
	return errors.As(err, &callErr) && callErr.Code == code
}
