// Package envelope implements the credential envelope wire format: the
// versioned JSON payload that carries a keypair between devices, and its
// two transport encodings (raw text for optical scanning, link URL for
// sharing).
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"veil-chat/go-handoff/pkg/models"
)

const (
	// EnvelopeType is the wire discriminator. Payloads carrying any other
	// value are rejected before the version is even considered.
	EnvelopeType = "credential-envelope"

	// CurrentVersion is the schema version stamped on every export.
	CurrentVersion = "1.0"

	// LinkParam is the query parameter holding the base64 payload in the
	// link encoding.
	LinkParam = "credential"

	DefaultBaseLinkURL = "https://app.veil.chat/link"

	usernameKeyPrefixLen = 10
)

var (
	ErrMalformedPayload = errors.New("credential payload is malformed")
	ErrUnknownFormat    = errors.New("unknown transport encoding format")
)

type Config struct {
	// BaseLinkURL is the absolute URL link encodings are built on.
	BaseLinkURL string
	// Now is injected by tests; defaults to time.Now.
	Now func() time.Time
}

type Codec struct {
	baseLink *url.URL
	now      func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	base := strings.TrimSpace(cfg.BaseLinkURL)
	if base == "" {
		base = DefaultBaseLinkURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base link url: %w", err)
	}
	if !u.IsAbs() {
		return nil, errors.New("base link url must be absolute")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{baseLink: u, now: now}, nil
}

// Encode serializes the keypair plus export metadata into exactly one
// transport encoding. The username is the account alias when present,
// otherwise a short prefix of the signing public key.
func (c *Codec) Encode(pair models.Keypair, account models.Account, format models.EncodingFormat) (models.TransportEncoding, error) {
	if !pair.Complete() {
		return models.TransportEncoding{}, ErrIncompleteKeypair
	}
	env := models.CredentialEnvelope{
		Type:       EnvelopeType,
		Version:    CurrentVersion,
		Pair:       pair,
		Username:   exportUsername(account, pair),
		ExportedAt: c.now().UnixMilli(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return models.TransportEncoding{}, fmt.Errorf("marshal credential envelope: %w", err)
	}
	switch format {
	case models.FormatRaw:
		return models.TransportEncoding{Format: models.FormatRaw, Value: string(raw)}, nil
	case models.FormatLink:
		link := *c.baseLink
		q := link.Query()
		q.Set(LinkParam, base64.StdEncoding.EncodeToString(raw))
		link.RawQuery = q.Encode()
		return models.TransportEncoding{Format: models.FormatLink, Value: link.String()}, nil
	default:
		return models.TransportEncoding{}, ErrUnknownFormat
	}
}

// Decode parses a received payload without knowing which transport
// delivered it. Text that parses as an absolute URL carrying the payload
// parameter is unwrapped first; anything else is taken as the envelope
// JSON itself.
func Decode(text string) (models.CredentialEnvelope, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.CredentialEnvelope{}, ErrMalformedPayload
	}
	raw := []byte(trimmed)
	if u, err := url.Parse(trimmed); err == nil && u.IsAbs() {
		if param := u.Query().Get(LinkParam); param != "" {
			decoded, err := base64.StdEncoding.DecodeString(param)
			if err != nil {
				return models.CredentialEnvelope{}, fmt.Errorf("%w: link payload is not base64", ErrMalformedPayload)
			}
			raw = decoded
		}
	}

	var wire struct {
		Type       *string         `json:"type"`
		Version    *string         `json:"version"`
		Pair       *models.Keypair `json:"pair"`
		Username   string          `json:"username"`
		ExportedAt int64           `json:"exportedAt"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.CredentialEnvelope{}, fmt.Errorf("%w: not a json object", ErrMalformedPayload)
	}
	// Distinguish absent fields from empty ones: a payload without the
	// pair key is malformed, a pair with empty values is a validation
	// failure handled later.
	if wire.Type == nil || wire.Version == nil || wire.Pair == nil {
		return models.CredentialEnvelope{}, fmt.Errorf("%w: missing type, version or pair", ErrMalformedPayload)
	}
	return models.CredentialEnvelope{
		Type:       *wire.Type,
		Version:    *wire.Version,
		Pair:       *wire.Pair,
		Username:   wire.Username,
		ExportedAt: wire.ExportedAt,
	}, nil
}

func exportUsername(account models.Account, pair models.Keypair) string {
	if alias := strings.TrimSpace(account.Alias); alias != "" {
		return alias
	}
	if len(pair.Pub) > usernameKeyPrefixLen {
		return pair.Pub[:usernameKeyPrefixLen]
	}
	return pair.Pub
}
