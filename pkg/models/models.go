package models

import (
	"time"
)

// Keypair is the four-field credential that moves between devices: an
// Ed25519 signing pair (pub/priv) and an X25519 encryption pair
// (epub/epriv), each field a base64url string.
type Keypair struct {
	Pub   string `json:"pub"`
	Priv  string `json:"priv"`
	EPub  string `json:"epub"`
	EPriv string `json:"epriv"`
}

// Complete reports whether all four key fields are present. Partial
// keypairs are never handed to callers; they either pass this check or
// the whole pair is treated as absent.
func (k Keypair) Complete() bool {
	return k.Pub != "" && k.Priv != "" && k.EPub != "" && k.EPriv != ""
}

// CredentialEnvelope is the versioned wire payload produced on export and
// consumed on import. Field names are wire format and must not change.
type CredentialEnvelope struct {
	Type       string  `json:"type"`
	Version    string  `json:"version"`
	Pair       Keypair `json:"pair"`
	Username   string  `json:"username"`
	ExportedAt int64   `json:"exportedAt"`
}

type EncodingFormat string

const (
	FormatRaw  EncodingFormat = "raw"
	FormatLink EncodingFormat = "link"
)

// TransportEncoding is one rendering of an envelope: the canonical JSON
// text for optical scanning, or an absolute URL carrying the payload in a
// query parameter for link sharing.
type TransportEncoding struct {
	Format EncodingFormat `json:"format"`
	Value  string         `json:"value"`
}

type ExchangePhase string

const (
	PhaseIdle          ExchangePhase = "idle"
	PhaseExporting     ExchangePhase = "exporting"
	PhaseAwaitingScan  ExchangePhase = "awaiting_scan"
	PhaseImporting     ExchangePhase = "importing"
	PhaseAuthenticated ExchangePhase = "authenticated"
	PhaseFailed        ExchangePhase = "failed"
)

type FailureKind string

const (
	FailureNoCredential           FailureKind = "no_credential"
	FailureMalformedPayload       FailureKind = "malformed_payload"
	FailureWrongType              FailureKind = "wrong_type"
	FailureUnsupportedVersion     FailureKind = "unsupported_version"
	FailureIncompleteKeypair      FailureKind = "incomplete_keypair"
	FailureAuthenticationRejected FailureKind = "authentication_rejected"
	FailureScanError              FailureKind = "scan_error"
)

type ExchangeFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ExchangeState is a snapshot of the exchange controller. Only the fields
// relevant to the current phase are populated.
type ExchangeState struct {
	Phase     ExchangePhase       `json:"phase"`
	Format    EncodingFormat      `json:"format,omitempty"`
	Encoding  *TransportEncoding  `json:"encoding,omitempty"`
	Envelope  *CredentialEnvelope `json:"envelope,omitempty"`
	Session   *Session            `json:"session,omitempty"`
	Failure   *ExchangeFailure    `json:"failure,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Session is the authenticated session minted after a successful import.
// The exchange layer treats it as opaque.
type Session struct {
	Token         string    `json:"token"`
	AccountID     string    `json:"account_id"`
	Alias         string    `json:"alias,omitempty"`
	EstablishedAt time.Time `json:"established_at"`
}

type Account struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
}
