package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"veil-chat/go-handoff/internal/envelope"
	"veil-chat/go-handoff/internal/securestore"
	"veil-chat/go-handoff/pkg/models"
)

// BackupConsentToken must be passed verbatim by the caller. Exporting
// key material to a portable blob is dangerous enough that the UI has to
// show the warning text before it can produce this token.
const BackupConsentToken = "I_UNDERSTAND_BACKUP_RISK"

var (
	ErrBackupConsentRequired    = errors.New("backup requires the explicit consent token")
	ErrBackupPassphraseRequired = errors.New("backup requires a non-empty passphrase")
)

// ExportBackup seals the resolved credential into a passphrase-encrypted
// blob the user can store offline. The blob holds the same envelope JSON
// an export produces, so restore shares the import validation path.
func (s *Service) ExportBackup(consentToken, passphrase string) (string, error) {
	if strings.TrimSpace(consentToken) != BackupConsentToken {
		return "", ErrBackupConsentRequired
	}
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return "", ErrBackupPassphraseRequired
	}

	account, _ := s.sdk.ActiveAccount()
	pair, err := s.resolver.Resolve(account)
	if err != nil {
		return "", err
	}
	enc, err := s.codec.Encode(pair, account, models.FormatRaw)
	if err != nil {
		return "", err
	}
	sealed, err := securestore.Encrypt(passphrase, []byte(enc.Value))
	if err != nil {
		return "", err
	}
	s.logger.Info("credential backup exported", "account_id", account.ID)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// RestoreBackup opens a backup blob and stores the credential it holds,
// making it the authoritative one for the next export. It reports the
// username recorded at backup time.
func (s *Service) RestoreBackup(consentToken, passphrase, blob string) (string, error) {
	if strings.TrimSpace(consentToken) != BackupConsentToken {
		return "", ErrBackupConsentRequired
	}
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return "", ErrBackupPassphraseRequired
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", fmt.Errorf("%w: backup blob is not base64", envelope.ErrMalformedPayload)
	}
	plain, err := securestore.Decrypt(passphrase, sealed)
	if err != nil {
		return "", err
	}
	env, err := envelope.Decode(string(plain))
	if err != nil {
		return "", err
	}
	pair, err := envelope.Validate(env)
	if err != nil {
		return "", err
	}
	if err := s.sdk.StoreCredential(pair, env.Username); err != nil {
		return "", err
	}
	s.logger.Info("credential backup restored", "username", env.Username)
	return env.Username, nil
}
