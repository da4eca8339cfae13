package repo

import "context"

// LiveMessage is a handle to a message that still exists on the chat
// platform, exposing exactly the operations the action stage needs.
type LiveMessage interface {
	React(ctx context.Context, emoji string) error
	Reply(ctx context.Context, content string) error
	Delete(ctx context.Context) error
}

// ChatClient is the chat platform collaborator. The platform itself is out
// of scope; the pipeline only ever touches it through this port.
type ChatClient interface {
	// FetchMessage returns a handle to the live message, or nil when the
	// message no longer exists. Gone is not an error.
	FetchMessage(ctx context.Context, channelID, messageID string) (LiveMessage, error)
}
