package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/desyr/companion-chat/pkg/domain"
	"github.com/desyr/companion-chat/pkg/keyword"
	"github.com/desyr/companion-chat/pkg/prompt"
)

// ContinuationMode decides what happens to a reply produced by the
// "continue" action.
type ContinuationMode string

const (
	// ContinuationAppend concatenates the reply onto the previous
	// assistant message with a paragraph break, keeping one narrative
	// beat in one bubble.
	ContinuationAppend ContinuationMode = "append"

	// ContinuationSeparate stores the reply as its own message tagged as
	// a continuation.
	ContinuationSeparate ContinuationMode = "separate"
)

type ConversationRepository interface {
	Create(systemPrompt, welcome string) domain.Conversation
	Get(conversationID string) (domain.Conversation, error)
	Messages(conversationID string) ([]domain.Message, error)
	Append(conversationID string, messages ...domain.Message) error
	ReplaceContent(conversationID, messageID, newContent string) (domain.Message, error)
	ExtendContent(conversationID, messageID, suffix string) (domain.Message, error)
	ToggleRemembered(conversationID, messageID string) (bool, error)
	Reset(conversationID, welcome string) (domain.Message, error)
	LatestRegenerable(conversationID string) (domain.Message, int, error)
}

type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, messages []domain.Message) (string, error)
}

type PersonaInfoProvider interface {
	ActiveInfo(ctx context.Context) domain.PersonaInfo
}

type ContextAssembler interface {
	Assemble(history []domain.Message, in prompt.Input) []domain.Message
	AssembleForRegeneration(history []domain.Message, persona domain.PersonaInfo, targetIndex int) []domain.Message
}

// CharacterConfig describes the roleplay character a conversation opens with.
type CharacterConfig struct {
	Name         string
	SystemPrompt string
	Welcome      string
}

type chatService struct {
	conversations    ConversationRepository
	personas         PersonaInfoProvider
	assembler        ContextAssembler
	client           CompletionClient
	gate             *InflightGate
	continuationMode ContinuationMode
	character        CharacterConfig

	mu             sync.RWMutex
	promptOverride string
}

func NewChatService(
	conversations ConversationRepository,
	personas PersonaInfoProvider,
	assembler ContextAssembler,
	client CompletionClient,
	gate *InflightGate,
	continuationMode ContinuationMode,
	character CharacterConfig,
) *chatService {
	return &chatService{
		conversations:    conversations,
		personas:         personas,
		assembler:        assembler,
		client:           client,
		gate:             gate,
		continuationMode: continuationMode,
		character:        character,
	}
}

// StartConversation opens a fresh conversation for the configured
// character, honoring a session prompt override when one is set.
func (c *chatService) StartConversation(ctx context.Context) domain.Conversation {
	conversation := c.conversations.Create(c.characterPrompt(), c.character.Welcome)
	slog.InfoContext(ctx, "conversation started", "conversation_id", conversation.ID, "character", c.character.Name)
	return conversation
}

func (c *chatService) Conversation(ctx context.Context, conversationID string) (domain.Conversation, error) {
	return c.conversations.Get(conversationID)
}

func (c *chatService) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return c.conversations.Messages(conversationID)
}

func (c *chatService) Busy(conversationID string) bool {
	return c.gate.Busy(conversationID)
}

// Send submits one user turn. Out-of-band ((instruction)) spans are
// stripped from the stored text and forwarded as a one-turn system
// directive. Nothing is written to the conversation unless the provider
// call succeeds.
func (c *chatService) Send(ctx context.Context, conversationID, input string) (domain.Message, error) {
	if !c.gate.TryBegin(conversationID) {
		return domain.Message{}, domain.ErrConversationBusy
	}
	defer c.gate.End(conversationID)

	parsed := keyword.ExtractInstructions(input)

	history, err := c.conversations.Messages(conversationID)
	if err != nil {
		return domain.Message{}, err
	}

	toSend := c.assembler.Assemble(history, prompt.Input{
		Persona:      c.personas.ActiveInfo(ctx),
		Instructions: parsed.Instructions,
		VisibleText:  parsed.VisibleText,
	})

	reply, err := c.client.CreateChatCompletion(ctx, toSend)
	if err != nil {
		return domain.Message{}, fmt.Errorf("generating reply: %w", err)
	}

	assistant := domain.NewAssistantMessage(reply)
	newMessages := make([]domain.Message, 0, 2)
	if parsed.VisibleText != "" {
		newMessages = append(newMessages, domain.NewUserMessage(parsed.VisibleText))
	}
	newMessages = append(newMessages, assistant)

	if err := c.conversations.Append(conversationID, newMessages...); err != nil {
		return domain.Message{}, err
	}

	slog.InfoContext(ctx, "reply generated", "conversation_id", conversationID, "length", len(reply))
	return assistant, nil
}

// Continue asks the character to extend its previous reply with no new
// user text. In append mode the reply is folded onto the latest assistant
// message; in separate mode it becomes a new message tagged as a
// continuation. No user-visible turn is stored either way.
func (c *chatService) Continue(ctx context.Context, conversationID string) (domain.Message, error) {
	if !c.gate.TryBegin(conversationID) {
		return domain.Message{}, domain.ErrConversationBusy
	}
	defer c.gate.End(conversationID)

	history, err := c.conversations.Messages(conversationID)
	if err != nil {
		return domain.Message{}, err
	}

	toSend := c.assembler.Assemble(history, prompt.Input{
		Persona:      c.personas.ActiveInfo(ctx),
		Continuation: true,
	})

	reply, err := c.client.CreateChatCompletion(ctx, toSend)
	if err != nil {
		return domain.Message{}, fmt.Errorf("generating continuation: %w", err)
	}

	if c.continuationMode == ContinuationAppend {
		target, _, err := c.conversations.LatestRegenerable(conversationID)
		if err == nil {
			return c.conversations.ExtendContent(conversationID, target.ID, reply)
		}
		if !errors.Is(err, domain.ErrNoRegenerableMessage) {
			return domain.Message{}, err
		}
		// Nothing to extend; fall through to a standalone message.
	}

	assistant := domain.NewAssistantMessage(reply)
	assistant.IsContinuation = true
	if err := c.conversations.Append(conversationID, assistant); err != nil {
		return domain.Message{}, err
	}
	return assistant, nil
}

// EditMessage replaces a message's content, keeping the superseded content
// retrievable.
func (c *chatService) EditMessage(ctx context.Context, conversationID, messageID, content string) (domain.Message, error) {
	return c.conversations.ReplaceContent(conversationID, messageID, content)
}

// ToggleRemembered flips a message's retention flag and reports the new
// state.
func (c *chatService) ToggleRemembered(ctx context.Context, conversationID, messageID string) (bool, error) {
	return c.conversations.ToggleRemembered(conversationID, messageID)
}

// NewChat resets the conversation, retaining system and remembered
// messages and greeting the user again.
func (c *chatService) NewChat(ctx context.Context, conversationID string) (domain.Message, error) {
	welcome, err := c.conversations.Reset(conversationID, c.character.Welcome)
	if err != nil {
		return domain.Message{}, err
	}

	slog.InfoContext(ctx, "conversation reset", "conversation_id", conversationID)
	return welcome, nil
}

// SetCharacterPrompt overrides the primary system prompt for conversations
// created during the rest of this server session. An empty value restores
// the configured default.
func (c *chatService) SetCharacterPrompt(prompt string) {
	c.mu.Lock()
	c.promptOverride = prompt
	c.mu.Unlock()
}

func (c *chatService) characterPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.promptOverride != "" {
		return c.promptOverride
	}
	return c.character.SystemPrompt
}
