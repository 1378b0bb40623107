package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	bip39 "github.com/tyler-smith/go-bip39"
)

const (
	storagePassphraseEnv = "VEIL_STORAGE_PASSPHRASE"
	storageKeyFile       = "storage.key"
)

var ErrInsecureStorageKey = errors.New("generated storage key is forbidden in production")

// StoragePassphrase resolves the secret protecting at-rest credential
// files. Precedence: explicit env secret, then storage.key in the data
// directory, then a freshly generated recovery phrase persisted to
// storage.key. Production refuses silent generation so an operator
// cannot end up with an unrecorded key.
func StoragePassphrase(dataDir string) (string, error) {
	if secret := envString(storagePassphraseEnv); secret != "" {
		return secret, nil
	}
	keyPath := filepath.Join(dataDir, storageKeyFile)
	existing, err := os.ReadFile(keyPath)
	if err == nil {
		if secret := strings.TrimSpace(string(existing)); secret != "" {
			return secret, nil
		}
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if IsProductionEnv() {
		return "", fmt.Errorf("%w: set %s or provision %s", ErrInsecureStorageKey, storagePassphraseEnv, storageKeyFile)
	}
	phrase, err := newRecoveryPhrase()
	if err != nil {
		return "", err
	}
	if err := WriteStorageKey(dataDir, phrase); err != nil {
		return "", err
	}
	return phrase, nil
}

// newRecoveryPhrase produces a BIP-39 mnemonic so the at-rest key can
// be copied onto paper instead of living only in a file.
func newRecoveryPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func WriteStorageKey(dataDir, secret string) error {
	keyPath := filepath.Join(dataDir, storageKeyFile)
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(keyPath, []byte(secret), 0o600)
}

// IsRecoveryPhrase reports whether a stored secret is a valid BIP-39
// mnemonic, i.e. one the user can re-enter from a paper copy.
func IsRecoveryPhrase(secret string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(secret))
}
