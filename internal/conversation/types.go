// Package conversation persists conversations and their messages.
package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Role tags one side of a conversational exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates a stored role label. Unknown labels are an error;
// callers that must tolerate legacy rows decide how to coerce.
func ParseRole(label string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(label))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	case RoleSystem:
		return RoleSystem, nil
	default:
		return "", fmt.Errorf("unknown role %q", label)
	}
}

// Conversation is the container for one user's message history. A user has
// exactly one active conversation: the most recently updated one. UpdatedAt
// advances on every appended message and drives retention sweeps.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one append-only entry in a conversation. AttachmentSummary is
// joined in on reads so a reused attachment's analysis stays visible every
// time its message resurfaces in a trailing window.
type Message struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content,omitempty"`
	AttachmentID      string    `json:"attachment_id,omitempty"`
	AttachmentKind    string    `json:"attachment_kind,omitempty"`
	AttachmentSummary string    `json:"attachment_summary,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// AppendInput is the input for appending a message.
type AppendInput struct {
	ConversationID string
	Role           Role
	Content        string
	AttachmentID   string
}
