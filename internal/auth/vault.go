package auth

import (
	"os"
	"sync"

	"veil-chat/go-handoff/internal/securestore"
	"veil-chat/go-handoff/pkg/models"
)

// CredentialRecord is what the vault persists: the keypair plus the alias
// it was imported under, so a later export can reproduce the username.
type CredentialRecord struct {
	Pair      models.Keypair `json:"pair"`
	Alias     string         `json:"alias,omitempty"`
	AccountID string         `json:"account_id,omitempty"`
}

// CredentialVault is the SDK's secure credential storage: one encrypted
// record on disk, written through securestore.
type CredentialVault struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

func NewCredentialVault(path, passphrase string) *CredentialVault {
	return &CredentialVault{path: path, passphrase: passphrase}
}

// Load reads the stored record. A missing vault file is not an error; it
// reports ok=false.
func (v *CredentialVault) Load() (CredentialRecord, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var rec CredentialRecord
	err := securestore.ReadEncryptedJSON(v.path, v.passphrase, &rec)
	if err != nil {
		if os.IsNotExist(err) {
			return CredentialRecord{}, false, nil
		}
		return CredentialRecord{}, false, err
	}
	return rec, true, nil
}

func (v *CredentialVault) Store(rec CredentialRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return securestore.WriteEncryptedJSON(v.path, v.passphrase, rec)
}
