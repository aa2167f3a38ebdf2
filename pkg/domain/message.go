package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// PrimarySystemMessageID identifies the character's primary system prompt.
// It exists exactly once per conversation and survives every reset.
const PrimarySystemMessageID = "system-1"

// welcomeIDPrefix marks the synthesized greeting that opens a conversation.
// Welcome messages are never eligible for regeneration.
const welcomeIDPrefix = "assistant-welcome"

// Message is a single turn in a conversation.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`

	// Remembered marks the turn for retention across a "new chat" reset.
	Remembered bool `json:"remembered,omitempty"`

	// Regenerations holds superseded contents, oldest first. Replacing
	// content with an equal value records nothing, and no two consecutive
	// entries are equal.
	Regenerations []string `json:"regenerations,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// IsContinuation marks a turn produced by a "continue" action rather
	// than a direct reply.
	IsContinuation bool `json:"isContinuation,omitempty"`

	// ContinuationBase is the content the message had before the most
	// recent continuation suffix was appended to it. Set only in
	// append-to-previous continuation mode, so the suffix can be
	// regenerated without discarding the base.
	ContinuationBase string `json:"continuationBase,omitempty"`
}

// IsWelcome reports whether the message is a synthesized greeting.
func (m Message) IsWelcome() bool {
	return m.Role == MessageRoleAssistant && strings.HasPrefix(m.ID, welcomeIDPrefix)
}

func NewUserMessage(content string) Message {
	return Message{
		ID:        "user-" + uuid.NewString(),
		Role:      MessageRoleUser,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func NewAssistantMessage(content string) Message {
	return Message{
		ID:        "assistant-" + uuid.NewString(),
		Role:      MessageRoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func NewWelcomeMessage(content string) Message {
	return Message{
		ID:        welcomeIDPrefix + "-" + uuid.NewString(),
		Role:      MessageRoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func NewSystemMessage(content string) Message {
	return Message{
		ID:        "system-" + uuid.NewString(),
		Role:      MessageRoleSystem,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
