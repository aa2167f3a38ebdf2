package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/desyr/companion-chat/pkg/domain"
)

// ContinuePlaceholder is the synthetic user turn sent when the user asks
// the character to extend its previous reply without new input.
const ContinuePlaceholder = "Please continue"

const continuityDirective = "CRITICAL: Remember the entire conversation context. " +
	"Reference previous statements or actions when appropriate. " +
	"Maintain spatial and emotional continuity between messages. " +
	"If you referenced an object or location in previous messages, be consistent with it. " +
	"Complete all sentences and thoughts."

const regenerationDirective = "IMPORTANT: Maintain continuity with your previous " +
	"physical positions and emotional state. Complete all thoughts and sentences. " +
	"Do not truncate your response."

const continuationDirective = "Continue from your previous message naturally, " +
	"as if adding to the same thought. Maintain the same tone, emotional state, " +
	"and scene setting."

// Enricher contributes additional system text derived from the
// conversation so far. Implementations must not mutate the history.
type Enricher interface {
	Enrich(history []domain.Message) string
}

// Input describes one outbound request to assemble.
type Input struct {
	Persona      domain.PersonaInfo
	Instructions string
	VisibleText  string
	Continuation bool
}

// Assembler builds the ordered message list submitted to the completion
// provider. It never mutates the conversation it reads from.
type Assembler struct {
	enrichers []Enricher
}

func NewAssembler(enrichers ...Enricher) *Assembler {
	return &Assembler{enrichers: enrichers}
}

// Assemble produces the outbound list for a new turn or a continuation.
// System messages come first in their original order, followed by the
// synthesized directives, the user/assistant history, and at most one
// trailing synthetic user message.
func (a *Assembler) Assemble(history []domain.Message, in Input) []domain.Message {
	systems := lo.Filter(history, func(m domain.Message, _ int) bool {
		return m.Role == domain.MessageRoleSystem
	})
	conversation := lo.Filter(history, func(m domain.Message, _ int) bool {
		return m.Role != domain.MessageRoleSystem
	})

	out := make([]domain.Message, 0, len(history)+4)
	out = append(out, systems...)
	out = append(out, domain.NewSystemMessage(a.continuityPrompt(continuityDirective, in.Persona, conversation)))

	if in.Instructions != "" {
		out = append(out, domain.NewSystemMessage(wrapInstructions(in.Instructions)))
	}
	if in.Continuation {
		out = append(out, domain.NewSystemMessage(continuationDirective))
	}

	out = append(out, conversation...)

	switch {
	case in.VisibleText != "":
		out = append(out, domain.NewUserMessage(in.VisibleText))
	case in.Continuation:
		out = append(out, domain.NewUserMessage(ContinuePlaceholder))
	}

	return out
}

// AssembleForRegeneration rebuilds the context for the message at
// targetIndex: everything before it, minus the target and later turns,
// with a stronger continuity directive, ending with an equivalent user
// prompt. A continuation target that carries its pre-suffix content gets
// that content restored as an assistant turn, so the model sees the
// narrative it is asked to continue.
func (a *Assembler) AssembleForRegeneration(history []domain.Message, persona domain.PersonaInfo, targetIndex int) []domain.Message {
	target := history[targetIndex]

	systems := lo.Filter(history, func(m domain.Message, _ int) bool {
		return m.Role == domain.MessageRoleSystem
	})
	conversation := lo.Filter(history[:targetIndex], func(m domain.Message, _ int) bool {
		return m.Role != domain.MessageRoleSystem
	})

	out := make([]domain.Message, 0, targetIndex+3)
	out = append(out, systems...)
	out = append(out, domain.NewSystemMessage(a.continuityPrompt(regenerationDirective, persona, conversation)))
	out = append(out, conversation...)

	if target.IsContinuation {
		if target.ContinuationBase != "" {
			out = append(out, domain.NewAssistantMessage(target.ContinuationBase))
		}
		out = append(out, domain.NewUserMessage(ContinuePlaceholder))
	} else if prior, ok := lastUserContent(history, targetIndex); ok {
		out = append(out, domain.NewUserMessage(prior))
	}

	return out
}

func (a *Assembler) continuityPrompt(directive string, persona domain.PersonaInfo, conversation []domain.Message) string {
	var b strings.Builder
	b.WriteString(directive)

	if persona.UserName != "" && persona.UserName != domain.DefaultUserName {
		fmt.Fprintf(&b, " The user's name is %s. Address them by name occasionally.", persona.UserName)
	}
	if persona.UserBio != "" {
		fmt.Fprintf(&b, " Important context about the user: %s. "+
			"Adapt your responses accordingly without explicitly mentioning it.", persona.UserBio)
	}

	for _, e := range a.enrichers {
		if hint := e.Enrich(conversation); hint != "" {
			b.WriteString(" ")
			b.WriteString(hint)
		}
	}

	return b.String()
}

func wrapInstructions(instructions string) string {
	return fmt.Sprintf("TEMPORARY INSTRUCTION FOR THIS RESPONSE ONLY: %s. "+
		"Follow this instruction naturally without explicitly acknowledging it.", instructions)
}

func lastUserContent(history []domain.Message, before int) (string, bool) {
	for i := before - 1; i >= 0; i-- {
		if history[i].Role == domain.MessageRoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}
