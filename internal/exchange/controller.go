// Package exchange drives the credential export/import flow as a state
// machine. One controller instance backs the whole daemon; every
// transition is published to the hub for the presentation process.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"veil-chat/go-handoff/internal/envelope"
	"veil-chat/go-handoff/internal/keyring"
	"veil-chat/go-handoff/pkg/models"
)

// ErrScanNotActive rejects scan input outside the awaiting_scan phase.
// This is what keeps at most one authentication handshake outstanding.
var ErrScanNotActive = errors.New("no scan in progress")

// Authenticator performs the handshake that turns a validated keypair
// into a session. It is the only suspending collaborator.
type Authenticator interface {
	Authenticate(ctx context.Context, pair models.Keypair) (models.Session, error)
}

// AccountReader supplies the identity export metadata is attributed to.
type AccountReader interface {
	ActiveAccount() (models.Account, bool)
}

// CredentialStore persists an imported credential after authentication
// succeeds, so the next export runs from the authoritative tier.
type CredentialStore interface {
	StoreCredential(pair models.Keypair, alias string) error
}

type Config struct {
	Resolver *keyring.Resolver
	Codec    *envelope.Codec
	Auth     Authenticator
	Accounts AccountReader
	Store    CredentialStore
	Hub      *Hub
	Logger   *slog.Logger
	Now      func() time.Time
}

type Controller struct {
	resolver *keyring.Resolver
	codec    *envelope.Codec
	auth     Authenticator
	accounts AccountReader
	store    CredentialStore
	hub      *Hub
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      models.ExchangeState
	attempt    uint64
	authCancel context.CancelFunc

	// invoked after an authentication result is applied or dropped;
	// set only by tests that need to wait for the goroutine.
	authSettled func()
}

func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(64)
	}
	return &Controller{
		resolver: cfg.Resolver,
		codec:    cfg.Codec,
		auth:     cfg.Auth,
		accounts: cfg.Accounts,
		store:    cfg.Store,
		hub:      hub,
		logger:   logger,
		now:      now,
		state:    models.ExchangeState{Phase: models.PhaseIdle, UpdatedAt: now().UTC()},
	}
}

func (c *Controller) Hub() *Hub {
	return c.hub
}

// State returns a deep-copied snapshot; callers can hold it across
// further transitions without racing the controller.
func (c *Controller) State() models.ExchangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneState(c.state)
}

// StartExport resolves the local credential and produces the requested
// encoding. Calling it from any other flow performs the mode-switch reset
// first. An export already showing the same format is left untouched;
// only a format change recomputes the encoding.
func (c *Controller) StartExport(format models.EncodingFormat) (models.ExchangeState, error) {
	if format != models.FormatRaw && format != models.FormatLink {
		return c.State(), envelope.ErrUnknownFormat
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == models.PhaseExporting && c.state.Format == format && c.state.Encoding != nil {
		return cloneState(c.state), nil
	}
	c.interruptLocked()

	var account models.Account
	if c.accounts != nil {
		account, _ = c.accounts.ActiveAccount()
	}
	pair, err := c.resolver.Resolve(account)
	if err != nil {
		return c.failLocked(models.FailureNoCredential, err), nil
	}
	enc, err := c.codec.Encode(pair, account, format)
	if err != nil {
		return c.failLocked(models.FailureNoCredential, fmt.Errorf("encode credential: %w", err)), nil
	}
	return c.setStateLocked(models.ExchangeState{
		Phase:    models.PhaseExporting,
		Format:   format,
		Encoding: &enc,
	}), nil
}

// BeginScan enters import mode and waits for scan input, abandoning any
// prior operation.
func (c *Controller) BeginScan() models.ExchangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptLocked()
	return c.setStateLocked(models.ExchangeState{Phase: models.PhaseAwaitingScan})
}

// SubmitScan feeds one scanned payload to the controller. Input is only
// honored while awaiting a scan; during importing and all other phases it
// is rejected with ErrScanNotActive. Decode and validation failures move
// the flow to failed; a valid payload suspends it in importing and starts
// the one-shot authentication.
func (c *Controller) SubmitScan(payload string) (models.ExchangeState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != models.PhaseAwaitingScan {
		return cloneState(c.state), ErrScanNotActive
	}
	env, err := envelope.Decode(payload)
	if err != nil {
		return c.failLocked(models.FailureMalformedPayload, err), nil
	}
	pair, err := envelope.Validate(env)
	if err != nil {
		return c.failLocked(validationFailureKind(err), err), nil
	}

	attempt := c.attempt
	ctx, cancel := context.WithCancel(context.Background())
	c.authCancel = cancel
	envCopy := env
	state := c.setStateLocked(models.ExchangeState{
		Phase:    models.PhaseImporting,
		Envelope: &envCopy,
	})
	go c.runAuthentication(ctx, attempt, pair, env.Username)
	return state, nil
}

// ReportScanFailure records a scan-layer problem such as an unavailable
// camera. The distinction from a malformed payload is deliberate: the
// user remedy differs.
func (c *Controller) ReportScanFailure(reason string) (models.ExchangeState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != models.PhaseAwaitingScan {
		return cloneState(c.state), ErrScanNotActive
	}
	c.interruptLocked()
	return c.failLocked(models.FailureScanError, fmt.Errorf("scan layer reported: %s", reason)), nil
}

// Cancel abandons a scan or an in-flight import and returns to idle. A
// late authentication result from the cancelled attempt is dropped. In
// any other phase Cancel is a no-op.
func (c *Controller) Cancel() models.ExchangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Phase {
	case models.PhaseAwaitingScan, models.PhaseImporting:
		c.interruptLocked()
		return c.setStateLocked(models.ExchangeState{Phase: models.PhaseIdle})
	default:
		return cloneState(c.state)
	}
}

// Reset is the mode-switch transition: from any phase back to idle,
// clearing failures and abandoning whatever was in flight.
func (c *Controller) Reset() models.ExchangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptLocked()
	return c.setStateLocked(models.ExchangeState{Phase: models.PhaseIdle})
}

// Close cancels any in-flight authentication; used at daemon shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptLocked()
}

func (c *Controller) runAuthentication(ctx context.Context, attempt uint64, pair models.Keypair, username string) {
	session, err := c.auth.Authenticate(ctx, pair)

	c.mu.Lock()
	defer c.mu.Unlock()
	if settle := c.authSettled; settle != nil {
		defer settle()
	}
	// The flow may have been cancelled or restarted while the handshake
	// ran; a result for a stale attempt must not touch current state.
	if attempt != c.attempt || c.state.Phase != models.PhaseImporting {
		c.logger.Debug("stale authentication result dropped", "attempt", attempt)
		return
	}
	c.authCancel = nil
	if err != nil {
		c.failLocked(models.FailureAuthenticationRejected, err)
		return
	}
	if c.store != nil {
		if err := c.store.StoreCredential(pair, username); err != nil {
			c.logger.Warn("failed to persist imported credential", "error", err)
		}
	}
	sess := session
	if sess.Alias == "" {
		sess.Alias = strings.TrimSpace(username)
	}
	c.setStateLocked(models.ExchangeState{Phase: models.PhaseAuthenticated, Session: &sess})
	c.logger.Info("credential import authenticated", "account_id", session.AccountID)
}

// interruptLocked invalidates the current attempt and cancels any
// in-flight authentication. Every operation that abandons the current
// flow goes through here.
func (c *Controller) interruptLocked() {
	c.attempt++
	if c.authCancel != nil {
		c.authCancel()
		c.authCancel = nil
	}
}

func (c *Controller) setStateLocked(next models.ExchangeState) models.ExchangeState {
	next.UpdatedAt = c.now().UTC()
	c.state = next
	snapshot := cloneState(next)
	c.hub.Publish(snapshot)
	c.logger.Debug("exchange state changed", "phase", string(next.Phase))
	return snapshot
}

func (c *Controller) failLocked(kind models.FailureKind, err error) models.ExchangeState {
	c.logger.Warn("exchange operation failed", "kind", string(kind), "error", err)
	return c.setStateLocked(models.ExchangeState{
		Phase:   models.PhaseFailed,
		Failure: &models.ExchangeFailure{Kind: kind, Message: failureMessage(kind)},
	})
}

func validationFailureKind(err error) models.FailureKind {
	switch {
	case errors.Is(err, envelope.ErrWrongType):
		return models.FailureWrongType
	case errors.Is(err, envelope.ErrUnsupportedVersion):
		return models.FailureUnsupportedVersion
	case errors.Is(err, envelope.ErrIncompleteKeypair):
		return models.FailureIncompleteKeypair
	default:
		return models.FailureMalformedPayload
	}
}

func failureMessage(kind models.FailureKind) string {
	switch kind {
	case models.FailureNoCredential:
		return "No credential is available on this device."
	case models.FailureMalformedPayload:
		return "The scanned code is not a credential payload."
	case models.FailureWrongType:
		return "That code is not a credential export."
	case models.FailureUnsupportedVersion:
		return "This credential was exported by a newer app version."
	case models.FailureIncompleteKeypair:
		return "The credential is missing key material."
	case models.FailureAuthenticationRejected:
		return "The credential was rejected. Export it again on the old device."
	case models.FailureScanError:
		return "Scanning failed. Check camera access and try again."
	default:
		return "The credential exchange failed."
	}
}

func cloneState(s models.ExchangeState) models.ExchangeState {
	out := s
	if s.Encoding != nil {
		enc := *s.Encoding
		out.Encoding = &enc
	}
	if s.Envelope != nil {
		env := *s.Envelope
		out.Envelope = &env
	}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	if s.Failure != nil {
		fail := *s.Failure
		out.Failure = &fail
	}
	return out
}
