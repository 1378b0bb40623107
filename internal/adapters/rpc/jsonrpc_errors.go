package rpc

import (
	"errors"

	"veil-chat/go-handoff/internal/api"
	"veil-chat/go-handoff/internal/auth"
	"veil-chat/go-handoff/internal/envelope"
	"veil-chat/go-handoff/internal/exchange"
	"veil-chat/go-handoff/internal/keyring"
	"veil-chat/go-handoff/internal/securestore"
)

// Domain error codes. -326xx and below are reserved by JSON-RPC itself;
// the daemon's own failures map into the -3203x/-3204x range.
const (
	CodeScanNotActive   = -32030
	CodeNoCredential    = -32031
	CodeBackupConsent   = -32032
	CodeBackupBadSecret = -32033
	CodeBackupBadBlob   = -32034
	CodeCredentialBad   = -32035
	CodeNoAccount       = -32040
	CodeInternal        = -32050
)

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

func mapServiceError(err error) *rpcError {
	switch {
	case errors.Is(err, exchange.ErrScanNotActive):
		return &rpcError{Code: CodeScanNotActive, Message: err.Error()}
	case errors.Is(err, envelope.ErrUnknownFormat):
		return rpcInvalidParams()
	case errors.Is(err, keyring.ErrNoCredential):
		return &rpcError{Code: CodeNoCredential, Message: err.Error()}
	case errors.Is(err, api.ErrBackupConsentRequired),
		errors.Is(err, api.ErrBackupPassphraseRequired):
		return &rpcError{Code: CodeBackupConsent, Message: err.Error()}
	case errors.Is(err, securestore.ErrAuthFailed):
		return &rpcError{Code: CodeBackupBadSecret, Message: "backup passphrase is incorrect or blob is corrupted"}
	case errors.Is(err, securestore.ErrInvalid),
		errors.Is(err, securestore.ErrLegacyData):
		return &rpcError{Code: CodeBackupBadBlob, Message: "blob is not a credential backup"}
	case errors.Is(err, envelope.ErrMalformedPayload),
		errors.Is(err, envelope.ErrWrongType),
		errors.Is(err, envelope.ErrUnsupportedVersion),
		errors.Is(err, envelope.ErrIncompleteKeypair):
		return &rpcError{Code: CodeBackupBadBlob, Message: err.Error()}
	case errors.Is(err, auth.ErrCredentialRejected):
		return &rpcError{Code: CodeCredentialBad, Message: err.Error()}
	default:
		return &rpcError{Code: CodeInternal, Message: err.Error()}
	}
}
