package repo

import (
	"context"
	"errors"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// ErrRateLimited signals an upstream 429. The resolver backs off briefly
// before trying the next provider; everything else about the failure is
// ordinary health signal.
var ErrRateLimited = errors.New("provider rate limited")

// IdentityProvider is one upstream lookup service. Implementations
// normalize their tweet and profile response shapes into ResolvedIdentity.
type IdentityProvider interface {
	// Source identifies the provider in identities and health telemetry.
	Source() domain.IdentitySource

	// Lookup resolves a match to an identity. Only the primary provider
	// supports numeric user-id lookups; a provider may legitimately
	// return an identity whose UserID is empty (found, id unresolved).
	Lookup(ctx context.Context, match domain.Match) (*domain.ResolvedIdentity, error)
}
