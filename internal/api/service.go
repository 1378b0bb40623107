// Package api composes the daemon's domain pieces into the one service
// facade the RPC transport talks to.
package api

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"veil-chat/go-handoff/internal/auth"
	"veil-chat/go-handoff/internal/envelope"
	"veil-chat/go-handoff/internal/exchange"
	"veil-chat/go-handoff/internal/keyring"
	"veil-chat/go-handoff/internal/platform/metrics"
	"veil-chat/go-handoff/internal/platform/privacylog"
	"veil-chat/go-handoff/internal/platform/runtime"
	"veil-chat/go-handoff/pkg/models"
)

const (
	credentialFileName    = "credential.enc"
	sessionFileName       = "session.enc"
	legacyKeypairFileName = "keypair.json"
)

type ServiceOptions struct {
	// DataDir holds the encrypted credential vault, the session snapshot
	// and any legacy plaintext keypair left by old releases.
	DataDir string
	// Passphrase unlocks the encrypted files under DataDir.
	Passphrase  string
	BaseLinkURL string
	Logger      *slog.Logger
	Metrics     *metrics.Set
	// Now is injected by tests; defaults to time.Now.
	Now func() time.Time
}

// Service owns the assembled daemon: the authentication SDK with its
// vault, the credential resolver, the envelope codec and the exchange
// controller. One instance backs the whole process.
type Service struct {
	sdk        *auth.SDK
	resolver   *keyring.Resolver
	codec      *envelope.Codec
	controller *exchange.Controller
	logger     *slog.Logger

	watchStop func()
}

func NewService(opts ServiceOptions) (*Service, error) {
	opts = ensureServiceOptions(opts)

	vault := auth.NewCredentialVault(filepath.Join(opts.DataDir, credentialFileName), opts.Passphrase)
	snapshot := auth.NewSessionSnapshotStore(filepath.Join(opts.DataDir, sessionFileName), opts.Passphrase)
	sdk := auth.NewSDK(auth.Config{
		Vault:    vault,
		Snapshot: snapshot,
		Logger:   opts.Logger,
		Now:      opts.Now,
	})
	sdk.Bootstrap()

	// Tier order is the credential lookup contract: secure storage, then
	// the legacy plaintext file, then keypair fields on a restored session.
	resolver := keyring.NewResolver(opts.Logger,
		keyring.VaultSource{Vault: sdk},
		keyring.LegacyFileSource{Path: filepath.Join(opts.DataDir, legacyKeypairFileName)},
		keyring.SessionSource{Sessions: sdk},
	)

	codec, err := envelope.NewCodec(envelope.Config{BaseLinkURL: opts.BaseLinkURL, Now: opts.Now})
	if err != nil {
		return nil, err
	}

	controller := exchange.NewController(exchange.Config{
		Resolver: resolver,
		Codec:    codec,
		Auth:     sdk,
		Accounts: sdk,
		Store:    sdk,
		Logger:   opts.Logger,
		Now:      opts.Now,
	})

	svc := &Service{
		sdk:        sdk,
		resolver:   resolver,
		codec:      codec,
		controller: controller,
		logger:     opts.Logger,
	}
	if opts.Metrics != nil {
		svc.watchStop = watchTransitions(controller.Hub(), opts.Metrics)
	}
	return svc, nil
}

func ensureServiceOptions(opts ServiceOptions) ServiceOptions {
	if strings.TrimSpace(opts.DataDir) == "" {
		opts.DataDir = "veil-data"
	}
	if opts.Logger == nil {
		opts.Logger = runtime.DefaultLogger()
	}
	opts.Logger = slog.New(privacylog.WrapHandler(opts.Logger.Handler()))
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// StartExport accepts the format as the wire string; absent means raw.
func (s *Service) StartExport(format string) (models.ExchangeState, error) {
	f := models.EncodingFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = models.FormatRaw
	}
	return s.controller.StartExport(f)
}

func (s *Service) BeginScan() models.ExchangeState {
	return s.controller.BeginScan()
}

func (s *Service) SubmitScan(payload string) (models.ExchangeState, error) {
	return s.controller.SubmitScan(payload)
}

func (s *Service) ReportScanError(reason string) (models.ExchangeState, error) {
	return s.controller.ReportScanFailure(reason)
}

func (s *Service) CancelExchange() models.ExchangeState {
	return s.controller.Cancel()
}

func (s *Service) ResetExchange() models.ExchangeState {
	return s.controller.Reset()
}

func (s *Service) ExchangeState() models.ExchangeState {
	return s.controller.State()
}

func (s *Service) EventsSince(fromSeq int64) []exchange.Event {
	return s.controller.Hub().EventsSince(fromSeq)
}

func (s *Service) SubscribeEvents(fromSeq int64) ([]exchange.Event, <-chan exchange.Event, func()) {
	return s.controller.Hub().Subscribe(fromSeq)
}

func (s *Service) ActiveAccount() (models.Account, bool) {
	return s.sdk.ActiveAccount()
}

func (s *Service) ActiveSession() (models.Session, bool) {
	return s.sdk.ActiveSession()
}

// Close stops the metrics watcher and abandons any in-flight
// authentication. Safe to call more than once.
func (s *Service) Close() {
	s.controller.Close()
	if s.watchStop != nil {
		s.watchStop()
		s.watchStop = nil
	}
}
