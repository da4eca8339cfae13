package domain

import "time"

// MessageState tracks a pending message through the pipeline.
//
// queued is the only non-terminal state: a queued row must always be
// re-derivable into a resolution job from its stored matches, which is what
// the recovery sweep relies on after a crash.
type MessageState string

const (
	// StateQueued means the message is waiting on pipeline work.
	StateQueued MessageState = "queued"
	// StateActioned means moderation actions were executed.
	StateActioned MessageState = "actioned"
	// StateFailed means the pipeline ended without acting: nothing
	// resolved, or the message disappeared before the action stage.
	StateFailed MessageState = "failed"
)

// ResolutionData summarizes the resolve stage outcome persisted on failure.
type ResolutionData struct {
	Resolved          int     `json:"resolved"`
	Unresolved        int     `json:"unresolved"`
	UnresolvedMatches []Match `json:"unresolvedMatches,omitempty"`
}

// PendingMessage is the persistent record of a message moving through the
// pipeline, keyed by (MessageID, GuildID). The state column is the
// authoritative source of truth for recovery.
type PendingMessage struct {
	MessageID   string
	GuildID     string
	ChannelID   string
	AuthorID    string
	IsAuthorBot bool
	Content     string
	Matches     []Match
	State       MessageState
	Resolution  *ResolutionData
	Actions     []ActionTaken
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// IncomingMessage is the slice of a chat message the pipeline cares about.
// GuildID is empty for direct messages, which are ignored.
type IncomingMessage struct {
	MessageID   string
	GuildID     string
	ChannelID   string
	AuthorID    string
	IsAuthorBot bool
	Content     string
	// Snapshots holds the content of forwarded messages, if any.
	Snapshots []string
}

// ExtractMessage pulls every link match out of a message and its forwarded
// snapshots, pooled and de-duplicated. It returns nil when the message has
// no guild context or no recognizable links; both are short-circuits, not
// errors, and must cause no side effects upstream.
func ExtractMessage(msg IncomingMessage) *PendingMessage {
	if msg.GuildID == "" {
		return nil
	}

	matches := FindLinks(msg.Content)
	for _, snapshot := range msg.Snapshots {
		matches = append(matches, FindLinks(snapshot)...)
	}
	matches = DedupMatches(matches)
	if len(matches) == 0 {
		return nil
	}

	return &PendingMessage{
		MessageID:   msg.MessageID,
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.AuthorID,
		IsAuthorBot: msg.IsAuthorBot,
		Content:     msg.Content,
		Matches:     matches,
		State:       StateQueued,
	}
}
