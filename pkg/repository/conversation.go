package repository

import (
	"sync"

	"github.com/desyr/companion-chat/pkg/domain"
)

// conversationRepository owns the authoritative message sequence of every
// live conversation. State is process-local: restarting the server loses
// it, mirroring the tab-lifetime semantics of the original client.
type conversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

func NewConversationRepository() *conversationRepository {
	return &conversationRepository{
		conversations: make(map[string]*domain.Conversation),
	}
}

// Create opens a conversation seeded with the primary system prompt and a
// welcome greeting and returns a copy of it.
func (r *conversationRepository) Create(systemPrompt, welcome string) domain.Conversation {
	conversation := domain.NewConversation(systemPrompt, welcome)

	r.mu.Lock()
	r.conversations[conversation.ID] = &conversation
	r.mu.Unlock()

	return copyConversation(&conversation)
}

func (r *conversationRepository) Get(conversationID string) (domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return copyConversation(conversation), nil
}

// Messages returns a deep copy of the ordered message log.
func (r *conversationRepository) Messages(conversationID string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return copyMessages(conversation.Messages), nil
}

// Append adds messages to the end of the log.
func (r *conversationRepository) Append(conversationID string, messages ...domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return domain.ErrConversationNotFound
	}

	conversation.Messages = append(conversation.Messages, messages...)
	return nil
}

// ReplaceContent overwrites a message's content, preserving the previous
// content in its regeneration history unless it equals the new value or
// is already the most recent entry. Role, id, and timestamp are untouched.
// The updated message is returned as a copy.
func (r *conversationRepository) ReplaceContent(conversationID, messageID, newContent string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, err := r.find(conversationID, messageID)
	if err != nil {
		return domain.Message{}, err
	}

	previous := message.Content
	if previous != newContent && !isLastRegeneration(message, previous) {
		message.Regenerations = append(message.Regenerations, previous)
	}
	message.Content = newContent
	return copyMessage(*message), nil
}

// ExtendContent appends a continuation suffix to a message with a
// paragraph break, recording the pre-continuation content so the suffix
// can later be regenerated on its own.
func (r *conversationRepository) ExtendContent(conversationID, messageID, suffix string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, err := r.find(conversationID, messageID)
	if err != nil {
		return domain.Message{}, err
	}

	message.ContinuationBase = message.Content
	message.Content = message.Content + "\n\n" + suffix
	message.IsContinuation = true
	return copyMessage(*message), nil
}

// ToggleRemembered flips the retention flag on a message.
func (r *conversationRepository) ToggleRemembered(conversationID, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, err := r.find(conversationID, messageID)
	if err != nil {
		return false, err
	}

	message.Remembered = !message.Remembered
	return message.Remembered, nil
}

// Reset starts a new chat: only remembered and system messages survive, in
// their original order, followed by a fresh welcome greeting. Everything
// else is discarded for good.
func (r *conversationRepository) Reset(conversationID, welcome string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return domain.Message{}, domain.ErrConversationNotFound
	}

	retained := make([]domain.Message, 0, len(conversation.Messages))
	for _, m := range conversation.Messages {
		if m.Remembered || m.Role == domain.MessageRoleSystem {
			retained = append(retained, m)
		}
	}

	welcomeMessage := domain.NewWelcomeMessage(welcome)
	conversation.Messages = append(retained, welcomeMessage)
	return welcomeMessage, nil
}

// LatestRegenerable locates the most recent assistant message that is not
// a welcome greeting, returning a copy and its index.
func (r *conversationRepository) LatestRegenerable(conversationID string) (domain.Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return domain.Message{}, 0, domain.ErrConversationNotFound
	}

	for i := len(conversation.Messages) - 1; i >= 0; i-- {
		m := conversation.Messages[i]
		if m.Role == domain.MessageRoleAssistant && !m.IsWelcome() {
			return copyMessage(m), i, nil
		}
	}
	return domain.Message{}, 0, domain.ErrNoRegenerableMessage
}

func (r *conversationRepository) find(conversationID, messageID string) (*domain.Message, error) {
	conversation, ok := r.conversations[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	for i := range conversation.Messages {
		if conversation.Messages[i].ID == messageID {
			return &conversation.Messages[i], nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func isLastRegeneration(m *domain.Message, content string) bool {
	return len(m.Regenerations) > 0 && m.Regenerations[len(m.Regenerations)-1] == content
}

func copyConversation(c *domain.Conversation) domain.Conversation {
	copied := *c
	copied.Messages = copyMessages(c.Messages)
	return copied
}

func copyMessages(messages []domain.Message) []domain.Message {
	copied := make([]domain.Message, len(messages))
	for i, m := range messages {
		copied[i] = copyMessage(m)
	}
	return copied
}

func copyMessage(m domain.Message) domain.Message {
	if m.Regenerations != nil {
		m.Regenerations = append([]string(nil), m.Regenerations...)
	}
	return m
}
