package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

// blocklistRepo implements blocklist storage and the enforcement read path.
type blocklistRepo struct {
	db *sql.DB
}

func (r *blocklistRepo) Create(ctx context.Context, bl *domain.Blocklist) (int64, error) {
	createdAt := bl.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO blocklists (name, description, visibility, created_at)
		VALUES (?, ?, ?, ?)
	`, bl.Name, bl.Description, bl.Visibility, createdAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create blocklist: %w", err)
	}
	return res.LastInsertId()
}

func (r *blocklistRepo) AddEntry(ctx context.Context, entry *domain.BlocklistEntry) (int64, error) {
	addedAt := entry.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO blocklist_entries
			(blocklist_id, user_id, username, public_reason, private_reason, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.BlocklistID, entry.UserID, entry.Username, entry.PublicReason, entry.PrivateReason, addedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to add blocklist entry: %w", err)
	}
	return res.LastInsertId()
}

// RemoveEntry soft deletes every active entry for the user on the list.
func (r *blocklistRepo) RemoveEntry(ctx context.Context, blocklistID int64, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE blocklist_entries SET removed_at = ?
		WHERE blocklist_id = ? AND user_id = ? AND removed_at IS NULL
	`, time.Now().Unix(), blocklistID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove blocklist entry: %w", err)
	}
	return nil
}

func (r *blocklistRepo) Subscribe(ctx context.Context, sub *domain.Subscription) error {
	overrides, err := json.Marshal(sub.ChannelOverrides)
	if err != nil {
		return fmt.Errorf("failed to marshal channel overrides: %w", err)
	}
	if sub.ChannelOverrides == nil {
		overrides = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (guild_id, blocklist_id, enabled, channel_overrides)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, blocklist_id) DO UPDATE SET
			enabled = excluded.enabled,
			channel_overrides = excluded.channel_overrides
	`, sub.GuildID, sub.BlocklistID, boolToInt(sub.Enabled), string(overrides))
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// EnforcedEntries joins the guild's enabled subscriptions with the active
// entries of the subscribed blocklists.
func (r *blocklistRepo) EnforcedEntries(ctx context.Context, guildID string) ([]repo.EnforcedEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.name, e.user_id, e.username, e.public_reason, e.private_reason, s.channel_overrides
		FROM subscriptions s
		JOIN blocklists b ON b.id = s.blocklist_id
		JOIN blocklist_entries e ON e.blocklist_id = b.id
		WHERE s.guild_id = ? AND s.enabled = 1 AND e.removed_at IS NULL
		ORDER BY b.id, e.id
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enforced entries: %w", err)
	}
	defer rows.Close()

	var entries []repo.EnforcedEntry
	for rows.Next() {
		var entry repo.EnforcedEntry
		var overrides string
		if err := rows.Scan(&entry.BlocklistID, &entry.BlocklistName, &entry.UserID,
			&entry.Username, &entry.PublicReason, &entry.PrivateReason, &overrides); err != nil {
			return nil, fmt.Errorf("failed to scan enforced entry: %w", err)
		}
		if err := json.Unmarshal([]byte(overrides), &entry.ChannelOverrides); err != nil {
			return nil, fmt.Errorf("failed to decode channel overrides: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// guildRepo implements guild action configuration storage.
type guildRepo struct {
	db *sql.DB
}

func (r *guildRepo) SetActionConfig(ctx context.Context, guildID, channelID string, cfg domain.ActionConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal action config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO action_configs (guild_id, channel_id, config)
		VALUES (?, ?, ?)
		ON CONFLICT(guild_id, channel_id) DO UPDATE SET config = excluded.config
	`, guildID, channelID, string(raw))
	if err != nil {
		return fmt.Errorf("failed to set action config: %w", err)
	}
	return nil
}

// ActionConfig returns the channel config when one exists, else the guild
// config, else the default.
func (r *guildRepo) ActionConfig(ctx context.Context, guildID, channelID string) (domain.ActionConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config FROM action_configs
		WHERE guild_id = ? AND channel_id IN (?, '')
		ORDER BY channel_id DESC
		LIMIT 1
	`, guildID, channelID)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.DefaultActionConfig(), nil
	}
	if err != nil {
		return domain.ActionConfig{}, fmt.Errorf("failed to query action config: %w", err)
	}

	var cfg domain.ActionConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.ActionConfig{}, fmt.Errorf("failed to decode action config: %w", err)
	}
	return cfg, nil
}
