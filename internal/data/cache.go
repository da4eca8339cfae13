package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guildwatch/bot/internal/biz/domain"
)

// cacheRepo implements the resolution cache on SQLite.
type cacheRepo struct {
	db *sql.DB
}

// Get looks up the cache row for a match. User-id matches hit the primary
// key; username matches go through the username index. Tweet-id matches
// have no cache path and return nil.
func (r *cacheRepo) Get(ctx context.Context, match domain.Match) (*domain.CacheRecord, error) {
	var row *sql.Row
	switch match.Kind {
	case domain.MatchUserID:
		row = r.db.QueryRowContext(ctx, `
			SELECT user_id, username, cached_at FROM resolution_cache WHERE user_id = ?
		`, match.UserID)
	case domain.MatchUsername:
		row = r.db.QueryRowContext(ctx, `
			SELECT user_id, username, cached_at FROM resolution_cache
			WHERE username = ? COLLATE NOCASE ORDER BY cached_at DESC LIMIT 1
		`, match.Username)
	default:
		return nil, nil
	}

	var rec domain.CacheRecord
	var cachedAt int64
	err := row.Scan(&rec.UserID, &rec.Username, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	rec.CachedAt = time.Unix(cachedAt, 0)
	return &rec, nil
}

// Put upserts the identity keyed by user id.
func (r *cacheRepo) Put(ctx context.Context, identity *domain.ResolvedIdentity) error {
	if identity == nil || identity.UserID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resolution_cache (user_id, username, cached_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username, cached_at = excluded.cached_at
	`, identity.UserID, identity.Username, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert cache: %w", err)
	}
	return nil
}

// GetIDByUsername returns the cached user id for a username, or "".
func (r *cacheRepo) GetIDByUsername(ctx context.Context, username string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id FROM resolution_cache
		WHERE username = ? COLLATE NOCASE ORDER BY cached_at DESC LIMIT 1
	`, username)

	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query cache by username: %w", err)
	}
	return id, nil
}
