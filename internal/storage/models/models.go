package models

import "time"

// Role tags who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is an append-only log of messages. UpdatedAt is bumped with
// every appended message, in the same transaction as the message insert.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is immutable once created. History order is CreatedAt with ID as
// tiebreak.
type Message struct {
	ID             int64
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}
