package repo

import (
	"context"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// EnforcedEntry is an active blocklist entry joined with the guild's
// subscription: the unit the blocklist checker filters against.
type EnforcedEntry struct {
	BlocklistID      int64
	BlocklistName    string
	UserID           string
	Username         string
	PublicReason     string
	PrivateReason    string
	ChannelOverrides map[string]bool
}

// BlocklistRepo manages blocklists and reads them for enforcement.
type BlocklistRepo interface {
	// Create stores a new blocklist and returns its id.
	Create(ctx context.Context, bl *domain.Blocklist) (int64, error)

	// AddEntry appends a blocked account to a blocklist.
	AddEntry(ctx context.Context, entry *domain.BlocklistEntry) (int64, error)

	// RemoveEntry soft deletes the account's entry, keeping its history.
	RemoveEntry(ctx context.Context, blocklistID int64, userID string) error

	// Subscribe upserts a guild's subscription to a blocklist.
	Subscribe(ctx context.Context, sub *domain.Subscription) error

	// EnforcedEntries returns the non-removed entries of every blocklist
	// the guild subscribes to with the subscription enabled.
	EnforcedEntries(ctx context.Context, guildID string) ([]EnforcedEntry, error)
}

// GuildRepo stores guild moderation configuration. Channel-level configs
// replace the guild-level config wholesale for messages in that channel.
type GuildRepo interface {
	// SetActionConfig stores a config at guild level (channelID empty) or
	// channel level.
	SetActionConfig(ctx context.Context, guildID, channelID string, cfg domain.ActionConfig) error

	// ActionConfig returns the channel config when present, else the
	// guild config, else the built-in default.
	ActionConfig(ctx context.Context, guildID, channelID string) (domain.ActionConfig, error)
}
