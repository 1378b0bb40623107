package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"veil-chat/go-handoff/internal/adapters/rpc"
)

var (
	rpcAddr  string
	rpcToken string

	client *rpc.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:   "handoffctl",
		Short: "Control a running handoffd credential daemon",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if rpcAddr == "" {
				rpcAddr = os.Getenv("VEIL_RPC_ADDR")
			}
			if rpcToken == "" {
				rpcToken = os.Getenv("VEIL_RPC_TOKEN")
			}
			client = rpc.NewClient(rpcAddr, rpcToken)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&rpcAddr, "addr", "", "daemon RPC address (default $VEIL_RPC_ADDR or "+rpc.DefaultRPCAddr+")")
	root.PersistentFlags().StringVar(&rpcToken, "token", "", "RPC token (default $VEIL_RPC_TOKEN)")

	root.AddCommand(statusCmd(), exportCmd(), importCmd(), cancelCmd(), resetCmd(), scanErrorCmd(), watchCmd(), backupCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}
