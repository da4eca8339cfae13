package domain

import "time"

// IdentitySource names where a resolved identity came from.
type IdentitySource string

const (
	// SourceFx is the primary lookup provider.
	SourceFx IdentitySource = "fx"
	// SourceVx is the secondary lookup provider.
	SourceVx IdentitySource = "vx"
	// SourceCache marks identities served from the resolution cache,
	// including stale fallbacks.
	SourceCache IdentitySource = "cache"
)

// ResolvedIdentity is a (userID, username) pair for a social account,
// normalized across providers.
//
// An empty UserID is a deliberate sentinel: the account was found but its
// id could not be resolved (the secondary provider's tweet lookups do not
// return author ids). That is distinct from the account not resolving at
// all, which callers signal with a nil *ResolvedIdentity.
type ResolvedIdentity struct {
	UserID   string         `json:"userId"`
	Username string         `json:"username"`
	Source   IdentitySource `json:"source"`
	Hashtags []string       `json:"hashtags,omitempty"`
}

// Resolved reports whether the identity carries a usable user id.
func (r *ResolvedIdentity) Resolved() bool {
	return r != nil && r.UserID != ""
}

// CacheFreshness is how long a cache record counts as fresh. Stale records
// are not invalidated; they remain usable as a last resort.
const CacheFreshness = 24 * time.Hour

// CacheRecord is a cached identity, keyed by user id with a secondary
// lookup path by username.
type CacheRecord struct {
	UserID   string
	Username string
	CachedAt time.Time
}

// Fresh reports whether the record is within the freshness window.
func (c *CacheRecord) Fresh(now time.Time) bool {
	return c != nil && now.Sub(c.CachedAt) < CacheFreshness
}

// Identity converts the record into a cache-sourced identity.
func (c *CacheRecord) Identity() *ResolvedIdentity {
	return &ResolvedIdentity{UserID: c.UserID, Username: c.Username, Source: SourceCache}
}
