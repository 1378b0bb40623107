package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"veil-chat/go-handoff/internal/platform/runtime"
	"veil-chat/go-handoff/pkg/models"
)

type Config struct {
	Vault    *CredentialVault
	Snapshot *SessionSnapshotStore
	Logger   *slog.Logger
	Now      func() time.Time
}

// SDK is the production authentication implementation. It verifies
// keypairs, derives the account identity, mints sessions and owns the
// secure credential storage that backs the resolver's first tier.
type SDK struct {
	vault    *CredentialVault
	snapshot *SessionSnapshotStore
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.RWMutex
	credential *CredentialRecord
	active     *SessionSnapshot
}

func NewSDK(cfg Config) *SDK {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SDK{vault: cfg.Vault, snapshot: cfg.Snapshot, logger: logger, now: now}
}

// Bootstrap loads persisted state into memory. Unreadable files are
// logged and treated as absent; the daemon must come up regardless.
func (s *SDK) Bootstrap() {
	if s.vault != nil {
		rec, ok, err := s.vault.Load()
		switch {
		case err != nil:
			s.logger.Warn("credential vault unreadable, treating as empty", "error", err)
		case ok:
			s.mu.Lock()
			s.credential = &rec
			s.mu.Unlock()
		}
	}
	if s.snapshot != nil {
		snap, ok, err := s.snapshot.Load()
		switch {
		case err != nil:
			s.logger.Warn("session snapshot unreadable, starting signed out", "error", err)
		case ok:
			s.mu.Lock()
			s.active = &snap
			s.mu.Unlock()
			if snap.Pair != nil {
				s.logger.Info("legacy keypair found on restored session",
					"account_id", snap.Account.ID)
			}
		}
	}
}

// Authenticate verifies the keypair, derives the account identity and
// mints a session, which becomes the active session. The credential
// itself is not persisted here; callers decide whether to store it.
func (s *SDK) Authenticate(ctx context.Context, pair models.Keypair) (models.Session, error) {
	if err := ctx.Err(); err != nil {
		return models.Session{}, err
	}
	material, err := VerifyKeypair(pair)
	if err != nil {
		return models.Session{}, err
	}
	accountID, err := DeriveAccountID(material.SigningPub)
	if err != nil {
		return models.Session{}, err
	}
	token, err := runtime.GeneratePrefixedID("sess")
	if err != nil {
		return models.Session{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Session{}, err
	}

	s.mu.Lock()
	alias := ""
	if s.credential != nil && s.credential.AccountID == accountID {
		alias = s.credential.Alias
	}
	session := models.Session{
		Token:         token,
		AccountID:     accountID,
		Alias:         alias,
		EstablishedAt: s.now().UTC(),
	}
	snap := SessionSnapshot{
		Session: session,
		Account: models.Account{ID: accountID, Alias: alias},
	}
	s.active = &snap
	s.mu.Unlock()

	if s.snapshot != nil {
		if err := s.snapshot.Save(snap); err != nil {
			s.logger.Warn("failed to persist session snapshot", "error", err)
		}
	}
	s.logger.Info("session established", "account_id", accountID, "session_id", token)
	return session, nil
}

// StoreCredential verifies and writes the keypair into the vault. When
// the active session belongs to the same account its alias is refreshed
// too, so exports reflect the imported username immediately.
func (s *SDK) StoreCredential(pair models.Keypair, alias string) error {
	material, err := VerifyKeypair(pair)
	if err != nil {
		return err
	}
	accountID, err := DeriveAccountID(material.SigningPub)
	if err != nil {
		return err
	}
	rec := CredentialRecord{Pair: pair, Alias: strings.TrimSpace(alias), AccountID: accountID}
	if s.vault != nil {
		if err := s.vault.Store(rec); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.credential = &rec
	if s.active != nil && s.active.Account.ID == accountID && rec.Alias != "" {
		s.active.Account.Alias = rec.Alias
		s.active.Session.Alias = rec.Alias
	}
	s.mu.Unlock()
	return nil
}

// StoredCredential is the resolver's first tier.
func (s *SDK) StoredCredential() (models.Keypair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credential == nil {
		return models.Keypair{}, false
	}
	return s.credential.Pair, true
}

// LegacySessionPair is the resolver's last tier: keypair fields old
// releases embedded in the session object.
func (s *SDK) LegacySessionPair() (models.Keypair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil || s.active.Pair == nil {
		return models.Keypair{}, false
	}
	return *s.active.Pair, true
}

// ActiveAccount reports who export metadata should be attributed to. With
// no live session it falls back to the identity recorded in the vault.
func (s *SDK) ActiveAccount() (models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active != nil {
		return s.active.Account, true
	}
	if s.credential != nil && s.credential.AccountID != "" {
		return models.Account{ID: s.credential.AccountID, Alias: s.credential.Alias}, true
	}
	return models.Account{}, false
}

func (s *SDK) ActiveSession() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return models.Session{}, false
	}
	return s.active.Session, true
}
