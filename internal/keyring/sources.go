package keyring

import (
	"encoding/json"
	"os"

	"veil-chat/go-handoff/pkg/models"
)

// CredentialGetter is the synchronous read surface of the authentication
// SDK's secure credential storage.
type CredentialGetter interface {
	StoredCredential() (models.Keypair, bool)
}

// LegacyPairReader exposes the keypair fields old releases attached to the
// in-memory session object.
type LegacyPairReader interface {
	LegacySessionPair() (models.Keypair, bool)
}

// VaultSource is the authoritative tier: the SDK's secure storage.
type VaultSource struct {
	Vault CredentialGetter
}

func (s VaultSource) Name() string { return "auth-sdk" }

func (s VaultSource) Lookup(models.Account) (models.Keypair, bool) {
	if s.Vault == nil {
		return models.Keypair{}, false
	}
	return s.Vault.StoredCredential()
}

// LegacyFileSource reads the plaintext JSON copy older releases kept on
// disk. Any read or parse failure means the tier is empty; migration
// problems must not break resolution.
type LegacyFileSource struct {
	Path string
}

func (s LegacyFileSource) Name() string { return "legacy-file" }

func (s LegacyFileSource) Lookup(models.Account) (models.Keypair, bool) {
	if s.Path == "" {
		return models.Keypair{}, false
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return models.Keypair{}, false
	}
	var pair models.Keypair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return models.Keypair{}, false
	}
	return pair, true
}

// SessionSource is the last tier: legacy keypair fields carried on the
// active session for installations that predate the vault.
type SessionSource struct {
	Sessions LegacyPairReader
}

func (s SessionSource) Name() string { return "session-memory" }

func (s SessionSource) Lookup(models.Account) (models.Keypair, bool) {
	if s.Sessions == nil {
		return models.Keypair{}, false
	}
	return s.Sessions.LegacySessionPair()
}
