// Package daemonserver wires the loaded configuration, storage key,
// daemon service and RPC transport into a runnable server.
package daemonserver

import (
	"log/slog"

	"veil-chat/go-handoff/internal/adapters/rpc"
	"veil-chat/go-handoff/internal/api"
	"veil-chat/go-handoff/internal/config"
	"veil-chat/go-handoff/internal/platform/metrics"
	"veil-chat/go-handoff/internal/platform/privacylog"
	"veil-chat/go-handoff/internal/platform/runtime"
)

// NewServerWithOptions builds the daemon from a config path plus the
// command-line overrides. Empty overrides defer to the loaded config.
func NewServerWithOptions(rpcAddr, configPath, dataDir string) (*rpc.Server, *api.Service, error) {
	cfg := config.LoadFromPath(configPath)
	if rpcAddr != "" {
		cfg.Listen = rpcAddr
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return NewServerFromConfig(cfg)
}

func NewServerFromConfig(cfg config.Config) (*rpc.Server, *api.Service, error) {
	base := runtime.DefaultLogger()
	logger := slog.New(privacylog.WrapHandler(base.Handler()))

	passphrase, err := config.StoragePassphrase(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	if config.IsRecoveryPhrase(passphrase) {
		logger.Info("storage key is a generated recovery phrase; keep the key file backed up",
			"data_dir", cfg.DataDir)
	}

	var set *metrics.Set
	if cfg.Metrics.Enabled {
		set = metrics.NewSet()
	}

	svc, err := api.NewService(api.ServiceOptions{
		DataDir:     cfg.DataDir,
		Passphrase:  passphrase,
		BaseLinkURL: cfg.BaseLinkURL,
		Logger:      base,
		Metrics:     set,
	})
	if err != nil {
		return nil, nil, err
	}

	srv := rpc.NewServer(cfg.Listen, svc, rpc.Options{
		Token:        cfg.RPCToken,
		RequireToken: config.RequiresRPCToken(),
		RateLimit: rpc.RateLimitConfig{
			Enabled: cfg.RateLimit.Enabled,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		},
		Metrics: set,
		Logger:  logger,
	})
	return srv, svc, nil
}
