package repo

import (
	"context"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// MessageRepo persists pending messages. Rows are keyed by
// (messageID, guildID) and updated with per-row upserts so concurrent
// stages cannot lose writes.
type MessageRepo interface {
	// Store inserts the pending message, or refreshes the existing row's
	// matches and content when the same message is ingested twice.
	Store(ctx context.Context, msg *domain.PendingMessage) error

	// Get returns the row, or nil when absent.
	Get(ctx context.Context, messageID, guildID string) (*domain.PendingMessage, error)

	// MarkFailed moves the row to the failed state, optionally recording
	// resolution counts.
	MarkFailed(ctx context.Context, messageID, guildID string, resolution *domain.ResolutionData) error

	// MarkActioned moves the row to the actioned state and records the
	// actions taken plus the completion time.
	MarkActioned(ctx context.Context, messageID, guildID string, actions []domain.ActionTaken) error

	// ListQueued returns up to limit rows still in the queued state, the
	// recovery sweep's input.
	ListQueued(ctx context.Context, limit int) ([]*domain.PendingMessage, error)
}
