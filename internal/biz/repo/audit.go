package repo

import (
	"context"
	"time"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// ActionRecord is one executed moderation outcome for the action log.
type ActionRecord struct {
	MessageID      string
	GuildID        string
	ChannelID      string
	AuthorID       string
	MatchedUserIDs []string
	ActionsTaken   []domain.ActionTaken
}

// OffenderRecord feeds the violation log and per-author offender counters.
type OffenderRecord struct {
	GuildID        string
	AuthorID       string
	ChannelID      string
	MessageID      string
	BlockedUserIDs []string
	BlocklistNames []string
	Timestamp      time.Time
}

// AuditRepo records moderation outcomes and identity observations.
type AuditRepo interface {
	// RecordAction appends an action log row.
	RecordAction(ctx context.Context, rec ActionRecord) error

	// RecordOffender appends a violation log row and upserts the author's
	// offender counters (total violations, first/last seen, per-blocked
	// user frequency).
	RecordOffender(ctx context.Context, rec OffenderRecord) error

	// RecordUsername tracks a (userID, username) observation. A username
	// first seen for the user marks earlier usernames non-current and
	// bumps the user's change counter.
	RecordUsername(ctx context.Context, userID, username, discoveredVia string) error
}
