package envelope

import (
	"errors"

	"veil-chat/go-handoff/pkg/models"
)

var (
	ErrWrongType          = errors.New("credential envelope type is wrong")
	ErrUnsupportedVersion = errors.New("credential envelope version is unsupported")
	ErrIncompleteKeypair  = errors.New("credential keypair is incomplete")
)

// SupportedVersions lists the schema versions this build can import.
// Adding forward compatibility for a future schema means appending here
// and extending Validate, nothing else.
var SupportedVersions = []string{CurrentVersion}

// Validate checks a decoded envelope's values in a fixed order: type
// first, then version, then keypair completeness. It must pass before any
// authentication attempt; on success the embedded keypair is returned
// unmodified.
func Validate(env models.CredentialEnvelope) (models.Keypair, error) {
	if env.Type != EnvelopeType {
		return models.Keypair{}, ErrWrongType
	}
	if !versionSupported(env.Version) {
		return models.Keypair{}, ErrUnsupportedVersion
	}
	if !env.Pair.Complete() {
		return models.Keypair{}, ErrIncompleteKeypair
	}
	return env.Pair, nil
}

func versionSupported(version string) bool {
	for _, v := range SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}
