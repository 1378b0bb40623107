package securestore

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ReadEncryptedJSON reads path, decrypts it with the passphrase and
// unmarshals the plaintext into v.
func ReadEncryptedJSON(path, passphrase string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	plain, err := Decrypt(passphrase, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, v)
}

// WriteEncryptedJSON marshals and encrypts v, then replaces path via a
// temp file so readers never observe a half-written snapshot.
func WriteEncryptedJSON(path, passphrase string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(passphrase, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
