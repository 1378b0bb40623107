package auth

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"

	"veil-chat/go-handoff/pkg/models"
)

const accountIDPrefix = "veil1"

// signProbe is signed and verified once per authentication to prove the
// signing halves actually belong together.
var signProbe = []byte("veil-handoff-auth-probe")

var ErrCredentialRejected = errors.New("credential was rejected")

// KeyMaterial is a keypair decoded from its wire form into usable keys.
type KeyMaterial struct {
	SigningPub  ed25519.PublicKey
	SigningPriv ed25519.PrivateKey
	EncPub      []byte
	EncPriv     []byte
}

// VerifyKeypair decodes the four wire fields and checks their internal
// consistency: the Ed25519 private key must reproduce the public key and
// pass a sign/verify probe, and the X25519 private scalar must derive the
// encryption public key. Any mismatch rejects the credential.
func VerifyKeypair(pair models.Keypair) (KeyMaterial, error) {
	if !pair.Complete() {
		return KeyMaterial{}, fmt.Errorf("%w: keypair is incomplete", ErrCredentialRejected)
	}
	pub, err := decodeKeyField("pub", pair.Pub, ed25519.PublicKeySize)
	if err != nil {
		return KeyMaterial{}, err
	}
	priv, err := decodeKeyField("priv", pair.Priv, ed25519.PrivateKeySize)
	if err != nil {
		return KeyMaterial{}, err
	}
	encPub, err := decodeKeyField("epub", pair.EPub, curve25519.PointSize)
	if err != nil {
		return KeyMaterial{}, err
	}
	encPriv, err := decodeKeyField("epriv", pair.EPriv, curve25519.ScalarSize)
	if err != nil {
		return KeyMaterial{}, err
	}

	signingPriv := ed25519.PrivateKey(priv)
	derivedPub, ok := signingPriv.Public().(ed25519.PublicKey)
	if !ok || !bytes.Equal(derivedPub, pub) {
		return KeyMaterial{}, fmt.Errorf("%w: signing keys do not match", ErrCredentialRejected)
	}
	if !ed25519.Verify(pub, signProbe, ed25519.Sign(signingPriv, signProbe)) {
		return KeyMaterial{}, fmt.Errorf("%w: signing probe failed", ErrCredentialRejected)
	}

	derivedEncPub, err := curve25519.X25519(encPriv, curve25519.Basepoint)
	if err != nil || !bytes.Equal(derivedEncPub, encPub) {
		return KeyMaterial{}, fmt.Errorf("%w: encryption keys do not match", ErrCredentialRejected)
	}

	return KeyMaterial{
		SigningPub:  ed25519.PublicKey(pub),
		SigningPriv: signingPriv,
		EncPub:      encPub,
		EncPriv:     encPriv,
	}, nil
}

// DeriveAccountID maps a signing public key to the stable account
// identifier shown to users and peers.
func DeriveAccountID(signingPublicKey []byte) (string, error) {
	if len(signingPublicKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid signing public key size: %d", len(signingPublicKey))
	}
	h := blake2b.Sum256(signingPublicKey)
	return accountIDPrefix + base58.Encode(h[:]), nil
}

func decodeKeyField(name, value string, wantSize int) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64url", ErrCredentialRejected, name)
	}
	if len(raw) != wantSize {
		return nil, fmt.Errorf("%w: %s has size %d, want %d", ErrCredentialRejected, name, len(raw), wantSize)
	}
	return raw, nil
}
