package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/desyr/companion-chat/pkg/domain"
)

// regenerator recomputes the content of the most recent non-welcome
// assistant message. The superseded content stays retrievable on the
// message; a failed attempt leaves the conversation untouched.
type regenerator struct {
	conversations ConversationRepository
	personas      PersonaInfoProvider
	assembler     ContextAssembler
	client        CompletionClient
	gate          *InflightGate
}

func NewRegenerator(
	conversations ConversationRepository,
	personas PersonaInfoProvider,
	assembler ContextAssembler,
	client CompletionClient,
	gate *InflightGate,
) *regenerator {
	return &regenerator{
		conversations: conversations,
		personas:      personas,
		assembler:     assembler,
		client:        client,
		gate:          gate,
	}
}

// Regenerate rebuilds the context up to the target turn, requests a new
// reply, and swaps it in. For continuations produced in append mode only
// the appended suffix is replaced, so the base narrative survives.
func (r *regenerator) Regenerate(ctx context.Context, conversationID string) (domain.Message, error) {
	if !r.gate.TryBegin(conversationID) {
		return domain.Message{}, domain.ErrConversationBusy
	}
	defer r.gate.End(conversationID)

	target, targetIndex, err := r.conversations.LatestRegenerable(conversationID)
	if err != nil {
		return domain.Message{}, err
	}

	history, err := r.conversations.Messages(conversationID)
	if err != nil {
		return domain.Message{}, err
	}

	toSend := r.assembler.AssembleForRegeneration(history, r.personas.ActiveInfo(ctx), targetIndex)

	reply, err := r.client.CreateChatCompletion(ctx, toSend)
	if err != nil {
		return domain.Message{}, fmt.Errorf("regenerating reply: %w", err)
	}

	newContent := reply
	if target.IsContinuation && target.ContinuationBase != "" {
		newContent = target.ContinuationBase + "\n\n" + reply
	}

	updated, err := r.conversations.ReplaceContent(conversationID, target.ID, newContent)
	if err != nil {
		return domain.Message{}, err
	}

	slog.InfoContext(ctx, "reply regenerated",
		"conversation_id", conversationID,
		"message_id", target.ID,
		"versions", len(updated.Regenerations),
	)
	return updated, nil
}
