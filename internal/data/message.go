package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// messageRepo implements the pending message store.
type messageRepo struct {
	db *sql.DB
}

// Store inserts the message, or refreshes the existing row's matches and
// content when the same message comes in again. State transitions only go
// through MarkFailed and MarkActioned, so a re-ingest of a completed row
// cannot pull it back to queued.
func (r *messageRepo) Store(ctx context.Context, msg *domain.PendingMessage) error {
	matches, err := json.Marshal(msg.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_messages
			(message_id, guild_id, channel_id, author_id, is_author_bot, content, matches, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, guild_id) DO UPDATE SET
			content = excluded.content,
			matches = excluded.matches
	`,
		msg.MessageID,
		msg.GuildID,
		msg.ChannelID,
		msg.AuthorID,
		boolToInt(msg.IsAuthorBot),
		msg.Content,
		string(matches),
		string(msg.State),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// Get returns the row, or nil when absent.
func (r *messageRepo) Get(ctx context.Context, messageID, guildID string) (*domain.PendingMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT message_id, guild_id, channel_id, author_id, is_author_bot,
		       content, matches, state, resolution, actions, created_at, completed_at
		FROM pending_messages
		WHERE message_id = ? AND guild_id = ?
	`, messageID, guildID)

	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return msg, nil
}

// MarkFailed moves the row to the failed state.
func (r *messageRepo) MarkFailed(ctx context.Context, messageID, guildID string, resolution *domain.ResolutionData) error {
	var resJSON any
	if resolution != nil {
		raw, err := json.Marshal(resolution)
		if err != nil {
			return fmt.Errorf("failed to marshal resolution: %w", err)
		}
		resJSON = string(raw)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE pending_messages
		SET state = ?, resolution = ?, completed_at = ?
		WHERE message_id = ? AND guild_id = ?
	`, string(domain.StateFailed), resJSON, time.Now().Unix(), messageID, guildID)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

// MarkActioned moves the row to the actioned state with the actions taken.
func (r *messageRepo) MarkActioned(ctx context.Context, messageID, guildID string, actions []domain.ActionTaken) error {
	raw, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE pending_messages
		SET state = ?, actions = ?, completed_at = ?
		WHERE message_id = ? AND guild_id = ?
	`, string(domain.StateActioned), string(raw), time.Now().Unix(), messageID, guildID)
	if err != nil {
		return fmt.Errorf("failed to mark message actioned: %w", err)
	}
	return nil
}

// ListQueued returns up to limit rows still queued, oldest first.
func (r *messageRepo) ListQueued(ctx context.Context, limit int) ([]*domain.PendingMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, guild_id, channel_id, author_id, is_author_bot,
		       content, matches, state, resolution, actions, created_at, completed_at
		FROM pending_messages
		WHERE state = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, string(domain.StateQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.PendingMessage
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanMessage(scan func(dest ...any) error) (*domain.PendingMessage, error) {
	var msg domain.PendingMessage
	var isBot int
	var matches, state string
	var resolution, actions sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64

	err := scan(
		&msg.MessageID, &msg.GuildID, &msg.ChannelID, &msg.AuthorID, &isBot,
		&msg.Content, &matches, &state, &resolution, &actions, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.IsAuthorBot = isBot != 0
	msg.State = domain.MessageState(state)
	msg.CreatedAt = time.Unix(createdAt, 0)
	if err := json.Unmarshal([]byte(matches), &msg.Matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	if resolution.Valid {
		var res domain.ResolutionData
		if err := json.Unmarshal([]byte(resolution.String), &res); err != nil {
			return nil, fmt.Errorf("failed to decode resolution: %w", err)
		}
		msg.Resolution = &res
	}
	if actions.Valid {
		if err := json.Unmarshal([]byte(actions.String), &msg.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions: %w", err)
		}
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		msg.CompletedAt = &t
	}
	return &msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
