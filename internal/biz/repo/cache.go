package repo

import (
	"context"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// CacheRepo is the resolution cache interface, keyed by user id with a
// secondary lookup path by username.
type CacheRepo interface {
	// Get returns the cached record for a match, or nil when absent.
	// Tweet-id matches have no cache path (tweets are not cached by id)
	// and always return nil without attempting username inference.
	Get(ctx context.Context, match domain.Match) (*domain.CacheRecord, error)

	// Put upserts the identity, keyed by user id.
	Put(ctx context.Context, identity *domain.ResolvedIdentity) error

	// GetIDByUsername returns the cached user id for a username, or ""
	// when unknown.
	GetIDByUsername(ctx context.Context, username string) (string, error)
}
