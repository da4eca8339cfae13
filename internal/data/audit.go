package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guildwatch/bot/internal/biz/repo"
)

// auditRepo implements the action log, violation log, offender counters and
// username history.
type auditRepo struct {
	db *sql.DB
}

func (r *auditRepo) RecordAction(ctx context.Context, rec repo.ActionRecord) error {
	userIDs, err := json.Marshal(rec.MatchedUserIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal matched user ids: %w", err)
	}
	actions, err := json.Marshal(rec.ActionsTaken)
	if err != nil {
		return fmt.Errorf("failed to marshal actions taken: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO action_log
			(message_id, guild_id, channel_id, author_id, matched_user_ids, actions_taken, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.MessageID, rec.GuildID, rec.ChannelID, rec.AuthorID, string(userIDs), string(actions), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

func (r *auditRepo) RecordOffender(ctx context.Context, rec repo.OffenderRecord) error {
	blockedIDs, err := json.Marshal(rec.BlockedUserIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked user ids: %w", err)
	}
	listNames, err := json.Marshal(rec.BlocklistNames)
	if err != nil {
		return fmt.Errorf("failed to marshal blocklist names: %w", err)
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin offender tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO violation_log
			(guild_id, author_id, channel_id, message_id, blocked_user_ids, blocklist_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.GuildID, rec.AuthorID, rec.ChannelID, rec.MessageID, string(blockedIDs), string(listNames), ts.Unix())
	if err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}

	counts := make(map[string]int)
	row := tx.QueryRowContext(ctx, `
		SELECT blocked_user_counts FROM offenders WHERE guild_id = ? AND author_id = ?
	`, rec.GuildID, rec.AuthorID)
	var rawCounts string
	err = row.Scan(&rawCounts)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to query offender counters: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(rawCounts), &counts); err != nil {
			return fmt.Errorf("failed to decode offender counters: %w", err)
		}
	}
	for _, id := range rec.BlockedUserIDs {
		counts[id]++
	}
	updated, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to marshal offender counters: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO offenders (guild_id, author_id, total_violations, blocked_user_counts, first_seen, last_seen)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(guild_id, author_id) DO UPDATE SET
			total_violations = total_violations + 1,
			blocked_user_counts = excluded.blocked_user_counts,
			last_seen = excluded.last_seen
	`, rec.GuildID, rec.AuthorID, string(updated), ts.Unix(), ts.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert offender: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit offender tx: %w", err)
	}
	return nil
}

// RecordUsername tracks a (userID, username) observation. A new username
// for a known user marks the previous ones non-current and bumps the
// user's change counter; a repeat observation is a no-op.
func (r *auditRepo) RecordUsername(ctx context.Context, userID, username, discoveredVia string) error {
	if userID == "" || username == "" {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin username tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	row := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM username_history
		WHERE user_id = ? AND username = ? COLLATE NOCASE
	`, userID, username)
	if err := row.Scan(&existing); err != nil {
		return fmt.Errorf("failed to query username history: %w", err)
	}
	if existing > 0 {
		return tx.Commit()
	}

	var priorNames int
	row = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM username_history WHERE user_id = ?
	`, userID)
	if err := row.Scan(&priorNames); err != nil {
		return fmt.Errorf("failed to count username history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE username_history SET is_current = 0 WHERE user_id = ?
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to retire usernames: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO username_history (user_id, username, discovered_via, first_seen, is_current)
		VALUES (?, ?, ?, ?, 1)
	`, userID, username, discoveredVia, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert username: %w", err)
	}

	// Only an actual rename bumps the counter, not the first sighting.
	bump := 0
	if priorNames > 0 {
		bump = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracked_users (user_id, username_change_count)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username_change_count = username_change_count + excluded.username_change_count
	`, userID, bump)
	if err != nil {
		return fmt.Errorf("failed to bump change counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit username tx: %w", err)
	}
	return nil
}
