// Package runtime holds small helpers shared across the daemon's
// composition layers.
package runtime

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
)

// DefaultLogger is the fallback when a caller injects none: structured
// JSON on stdout. Composition wraps it with the privacy sanitizer.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func GeneratePrefixedID(prefix string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}
