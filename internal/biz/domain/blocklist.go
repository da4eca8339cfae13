package domain

import "time"

// Blocklist is a named, guild-subscribable list of blocked accounts.
type Blocklist struct {
	ID          int64
	Name        string
	Description string
	Visibility  string // public or private
	CreatedAt   time.Time
}

// BlocklistEntry is one blocked account on a blocklist. Entries are soft
// deleted: a non-nil RemovedAt excludes the entry from enforcement without
// losing its history.
type BlocklistEntry struct {
	ID            int64
	BlocklistID   int64
	UserID        string
	Username      string
	PublicReason  string
	PrivateReason string
	AddedAt       time.Time
	RemovedAt     *time.Time
}

// Subscription links a guild to a blocklist. ChannelOverrides maps channel
// ids to per-channel enforcement toggles; an explicit false disables the
// blocklist in that channel only.
type Subscription struct {
	GuildID          string
	BlocklistID      int64
	Enabled          bool
	ChannelOverrides map[string]bool
}

// BlocklistMatch is a resolved identity that appears on a blocklist the
// guild enforces.
//
// PrivateReason is for moderator-facing surfaces only and must never leak
// into rendered replies.
type BlocklistMatch struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	BlocklistID   int64  `json:"blocklistId"`
	BlocklistName string `json:"blocklistName"`
	PublicReason  string `json:"publicReason,omitempty"`
	PrivateReason string `json:"privateReason,omitempty"`
}
