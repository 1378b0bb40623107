package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"veil-chat/go-handoff/internal/composition/daemonserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (default from config)")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Veil-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("handoffd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcToken != "" {
		_ = os.Setenv("VEIL_RPC_TOKEN", *rpcToken)
	}

	srv, svc, err := daemonserver.NewServerWithOptions(*rpcAddr, *configPath, *dataDir)
	if err != nil {
		log.Fatalf("handoffd failed to initialize: %v", err)
	}
	defer svc.Close()

	log.Println("handoffd starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("handoffd failed: %v", err)
	}
	log.Println("handoffd stopped")
}
