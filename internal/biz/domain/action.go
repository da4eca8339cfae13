package domain

import "strings"

// ActionConfig is a guild's (or channel's) moderation action configuration.
type ActionConfig struct {
	React        string `json:"react,omitempty"` // emoji, empty disables
	Reply        bool   `json:"reply"`
	ReplyMessage string `json:"replyMessage,omitempty"`
	Delete       bool   `json:"delete"`
}

// DefaultActionConfig is applied when a guild has not been configured.
func DefaultActionConfig() ActionConfig {
	return ActionConfig{
		React:        "⚠️",
		Reply:        true,
		ReplyMessage: "This message contains links to blocked accounts.",
		Delete:       false,
	}
}

// ActionKind discriminates the ModerationAction variants.
type ActionKind string

const (
	ActionReact  ActionKind = "react"
	ActionReply  ActionKind = "reply"
	ActionDelete ActionKind = "delete"
)

// ModerationAction is one action to execute against a message. Emoji is set
// for react, Content for reply, neither for delete.
type ModerationAction struct {
	Kind    ActionKind `json:"kind"`
	Emoji   string     `json:"emoji,omitempty"`
	Content string     `json:"content,omitempty"`
}

// ActionTaken records an executed action for the audit log.
type ActionTaken struct {
	Kind    ActionKind `json:"kind"`
	Emoji   string     `json:"emoji,omitempty"`
	Content string     `json:"content,omitempty"`
}

// DetermineActions decides which actions to take for a message whose links
// matched blocklist entries. Pure; decoupled from the chat API.
//
// Order is react, reply, delete: acknowledge, explain, remove. React and
// reply are suppressed for bot authors, which cannot meaningfully receive
// either; delete applies to any author when configured.
func DetermineActions(config ActionConfig, isAuthorBot bool, matches []BlocklistMatch) []ModerationAction {
	var actions []ModerationAction

	if config.React != "" && !isAuthorBot {
		actions = append(actions, ModerationAction{Kind: ActionReact, Emoji: config.React})
	}
	if config.Reply && !isAuthorBot {
		actions = append(actions, ModerationAction{
			Kind:    ActionReply,
			Content: RenderReply(matches, config.ReplyMessage),
		})
	}
	if config.Delete {
		actions = append(actions, ModerationAction{Kind: ActionDelete})
	}

	return actions
}

// RenderReply renders the reply body: a lead-in line, then matches grouped
// by blocklist name in first-seen order, each user with its public reason
// when present. Private reasons are never included.
func RenderReply(matches []BlocklistMatch, leadIn string) string {
	if leadIn == "" {
		leadIn = "⚠️ This message contains links to blocked accounts."
	}

	var order []string
	groups := make(map[string][]BlocklistMatch)
	for _, m := range matches {
		if _, ok := groups[m.BlocklistName]; !ok {
			order = append(order, m.BlocklistName)
		}
		groups[m.BlocklistName] = append(groups[m.BlocklistName], m)
	}

	var b strings.Builder
	b.WriteString(leadIn)
	b.WriteString("\n\n")
	for _, name := range order {
		b.WriteString("**")
		b.WriteString(name)
		b.WriteString(":**\n")
		for _, m := range groups[name] {
			b.WriteString("• @")
			b.WriteString(m.Username)
			if m.PublicReason != "" {
				b.WriteString(" - ")
				b.WriteString(m.PublicReason)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
