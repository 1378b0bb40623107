// Package keyring resolves the local account keypair from the configured
// storage tiers. Lookup order is the order sources are registered in;
// changing precedence or adding a tier is an edit to the wiring list, not
// to the resolver.
package keyring

import (
	"errors"
	"log/slog"

	"veil-chat/go-handoff/pkg/models"
)

var ErrNoCredential = errors.New("no complete keypair available in any credential source")

// Source is one storage tier. Lookup reports ok=false when the tier has
// nothing; it must never error out, a broken tier is an empty tier.
type Source interface {
	Name() string
	Lookup(account models.Account) (models.Keypair, bool)
}

type Resolver struct {
	sources []Source
	logger  *slog.Logger
}

func NewResolver(logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sources: sources, logger: logger}
}

// Resolve returns the first complete keypair found, trying sources
// strictly in registration order. A tier yielding a partial keypair is
// treated as empty so a partial pair can never escape. Resolution reads
// only; no tier is written or repaired here.
func (r *Resolver) Resolve(account models.Account) (models.Keypair, error) {
	for _, src := range r.sources {
		pair, ok := src.Lookup(account)
		if !ok {
			continue
		}
		if !pair.Complete() {
			r.logger.Debug("credential source returned partial keypair, skipping", "source", src.Name())
			continue
		}
		r.logger.Debug("credential resolved", "source", src.Name())
		return pair, nil
	}
	return models.Keypair{}, ErrNoCredential
}
