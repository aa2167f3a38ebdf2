package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the ordered message log for one chat session. It lives
// in memory only; restarting the server discards it, the same way closing
// the browser tab discarded the original client's state.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewConversation opens a conversation with the character's primary system
// prompt and a welcome greeting.
func NewConversation(systemPrompt, welcome string) Conversation {
	now := time.Now().UTC()
	return Conversation{
		ID: uuid.NewString(),
		Messages: []Message{
			{
				ID:        PrimarySystemMessageID,
				Role:      MessageRoleSystem,
				Content:   systemPrompt,
				Timestamp: now,
			},
			NewWelcomeMessage(welcome),
		},
		CreatedAt: now,
	}
}
