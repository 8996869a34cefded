// Package chat holds the persistent conversation records and their
// repositories. Messages are append-only; conversations carry a title and a
// last-activity timestamp that the orchestration pipeline updates.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. Role alternation is not enforced; a user may send several
// messages in a row.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is the placeholder title a conversation carries until the
// first user message derives a real one.
const DefaultTitle = "New Chat"

// Message is one turn in a conversation. Rows are never updated or deleted
// individually.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_message_conversation_created,priority:1" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Role           string    `gorm:"not null;index" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"not null;index:idx_message_conversation_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// Conversation is a titled container of messages owned by one user.
type Conversation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string    `gorm:"not null" json:"title"`
	LastActivity time.Time `gorm:"not null;index" json:"last_activity"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (Conversation) TableName() string { return "conversations" }
