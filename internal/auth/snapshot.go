package auth

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"veil-chat/go-handoff/internal/securestore"
	"veil-chat/go-handoff/pkg/models"
)

// SessionSnapshot is the active-session state persisted across daemon
// restarts. Old releases embedded the raw keypair in this file; that
// field is read for the session-memory resolver tier but never written
// back.
type SessionSnapshot struct {
	Session models.Session  `json:"session"`
	Account models.Account  `json:"account"`
	Pair    *models.Keypair `json:"pair,omitempty"`
}

type SessionSnapshotStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

func NewSessionSnapshotStore(path, passphrase string) *SessionSnapshotStore {
	return &SessionSnapshotStore{path: path, passphrase: passphrase}
}

// Load reads the snapshot, accepting both the current encrypted form and
// the plaintext JSON written by pre-vault releases.
func (s *SessionSnapshotStore) Load() (SessionSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionSnapshot{}, false, nil
		}
		return SessionSnapshot{}, false, err
	}
	if len(raw) == 0 {
		return SessionSnapshot{}, false, nil
	}
	decoded := raw
	if plain, err := securestore.Decrypt(s.passphrase, raw); err == nil {
		decoded = plain
	} else if !errors.Is(err, securestore.ErrLegacyData) {
		return SessionSnapshot{}, false, err
	}
	var snap SessionSnapshot
	if err := json.Unmarshal(decoded, &snap); err != nil {
		return SessionSnapshot{}, false, err
	}
	return snap, true, nil
}

// Save always writes the current encrypted form and drops any legacy
// embedded keypair.
func (s *SessionSnapshotStore) Save(snap SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Pair = nil
	return securestore.WriteEncryptedJSON(s.path, s.passphrase, snap)
}
