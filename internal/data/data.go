package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guildwatch/bot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Repositories contains all repositories backed by the SQLite store.
type Repositories struct {
	Cache     repo.CacheRepo
	Message   repo.MessageRepo
	Blocklist repo.BlocklistRepo
	Guild     repo.GuildRepo
	Audit     repo.AuditRepo

	db *sql.DB
}

// NewRepositories opens (or creates) the database and wires every
// repository on top of the shared connection.
func NewRepositories(dbPath string) (*Repositories, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repositories{
		Cache:     &cacheRepo{db: db},
		Message:   &messageRepo{db: db},
		Blocklist: &blocklistRepo{db: db},
		Guild:     &guildRepo{db: db},
		Audit:     &auditRepo{db: db},
		db:        db,
	}, nil
}

// Close closes the underlying database connection.
func (r *Repositories) Close() error {
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resolution_cache (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			cached_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resolution_cache_username ON resolution_cache(username)`,

		`CREATE TABLE IF NOT EXISTS pending_messages (
			message_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			is_author_bot INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL,
			matches TEXT NOT NULL,
			state TEXT NOT NULL,
			resolution TEXT,
			actions TEXT,
			created_at INTEGER NOT NULL,
			completed_at INTEGER,
			PRIMARY KEY (message_id, guild_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_messages_state ON pending_messages(state, created_at)`,

		`CREATE TABLE IF NOT EXISTS blocklists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'public',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blocklist_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blocklist_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			public_reason TEXT NOT NULL DEFAULT '',
			private_reason TEXT NOT NULL DEFAULT '',
			added_at INTEGER NOT NULL,
			removed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocklist_entries_list ON blocklist_entries(blocklist_id, removed_at)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			guild_id TEXT NOT NULL,
			blocklist_id INTEGER NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			channel_overrides TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (guild_id, blocklist_id)
		)`,

		`CREATE TABLE IF NOT EXISTS action_configs (
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL,
			PRIMARY KEY (guild_id, channel_id)
		)`,

		`CREATE TABLE IF NOT EXISTS action_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			matched_user_ids TEXT NOT NULL,
			actions_taken TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS violation_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			blocked_user_ids TEXT NOT NULL,
			blocklist_names TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS offenders (
			guild_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			total_violations INTEGER NOT NULL DEFAULT 0,
			blocked_user_counts TEXT NOT NULL DEFAULT '{}',
			first_seen INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			PRIMARY KEY (guild_id, author_id)
		)`,

		`CREATE TABLE IF NOT EXISTS username_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			discovered_via TEXT NOT NULL,
			first_seen INTEGER NOT NULL,
			is_current INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_username_history_user ON username_history(user_id, is_current)`,
		`CREATE TABLE IF NOT EXISTS tracked_users (
			user_id TEXT PRIMARY KEY,
			username_change_count INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
