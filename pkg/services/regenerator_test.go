package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/desyr/companion-chat/pkg/domain"
	"github.com/desyr/companion-chat/pkg/prompt"
	"github.com/desyr/companion-chat/pkg/repository"
)

func newTestRegenerator(client *stubClient, conversations ConversationRepository) *regenerator {
	return NewRegenerator(
		conversations,
		stubPersonas{},
		prompt.NewAssembler(),
		client,
		NewInflightGate(),
	)
}

func TestRegenerator_ReplacesLatestReply(t *testing.T) {
	ctx := context.Background()
	conversations := repository.NewConversationRepository()
	conversation := conversations.Create(testCharacter.SystemPrompt, testCharacter.Welcome)

	original := domain.NewAssistantMessage("the first take")
	if err := conversations.Append(conversation.ID, domain.NewUserMessage("tell me"), original); err != nil {
		t.Fatal(err)
	}

	client := &stubClient{reply: "the second take"}
	updated, err := newTestRegenerator(client, conversations).Regenerate(ctx, conversation.ID)
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}

	if updated.ID != original.ID {
		t.Errorf("regenerated id = %s, want %s", updated.ID, original.ID)
	}
	if updated.Content != "the second take" {
		t.Errorf("content = %q", updated.Content)
	}
	if !reflect.DeepEqual(updated.Regenerations, []string{"the first take"}) {
		t.Errorf("regenerations = %v", updated.Regenerations)
	}

	// The regenerated turn itself must not be in the outbound context.
	for _, m := range client.lastMessages {
		if m.Content == "the first take" {
			t.Error("outbound context contains the turn being regenerated")
		}
	}
}

func TestRegenerator_StacksOncePerDistinctPrior(t *testing.T) {
	ctx := context.Background()
	conversations := repository.NewConversationRepository()
	conversation := conversations.Create(testCharacter.SystemPrompt, testCharacter.Welcome)

	if err := conversations.Append(conversation.ID, domain.NewUserMessage("tell me"), domain.NewAssistantMessage("take one")); err != nil {
		t.Fatal(err)
	}

	client := &stubClient{reply: "take one"}
	regen := newTestRegenerator(client, conversations)

	// The provider returns the identical text twice in a row.
	if _, err := regen.Regenerate(ctx, conversation.ID); err != nil {
		t.Fatal(err)
	}
	updated, err := regen.Regenerate(ctx, conversation.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(updated.Regenerations) != 0 {
		t.Errorf("regenerations = %v, want none for identical content", updated.Regenerations)
	}
}

func TestRegenerator_WelcomeOnlyConversation(t *testing.T) {
	ctx := context.Background()
	conversations := repository.NewConversationRepository()
	conversation := conversations.Create(testCharacter.SystemPrompt, testCharacter.Welcome)

	before, err := conversations.Messages(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}

	client := &stubClient{reply: "should never be asked"}
	_, err = newTestRegenerator(client, conversations).Regenerate(ctx, conversation.ID)
	if !errors.Is(err, domain.ErrNoRegenerableMessage) {
		t.Fatalf("error = %v, want ErrNoRegenerableMessage", err)
	}
	if client.calls != 0 {
		t.Errorf("provider calls = %d, want 0", client.calls)
	}

	after, err := conversations.Messages(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("conversation changed on a failed regenerate")
	}
}

func TestRegenerator_FailureLeavesContentUntouched(t *testing.T) {
	ctx := context.Background()
	conversations := repository.NewConversationRepository()
	conversation := conversations.Create(testCharacter.SystemPrompt, testCharacter.Welcome)

	original := domain.NewAssistantMessage("still standing")
	if err := conversations.Append(conversation.ID, domain.NewUserMessage("tell me"), original); err != nil {
		t.Fatal(err)
	}

	client := &stubClient{err: errors.New("provider down")}
	if _, err := newTestRegenerator(client, conversations).Regenerate(ctx, conversation.ID); err == nil {
		t.Fatal("Regenerate() succeeded with a failing provider")
	}

	messages, err := conversations.Messages(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}
	last := messages[len(messages)-1]
	if last.Content != "still standing" || len(last.Regenerations) != 0 {
		t.Errorf("message after failed regenerate = %+v", last)
	}
}

func TestRegenerator_ContinuationSuffixOnly(t *testing.T) {
	ctx := context.Background()
	conversations := repository.NewConversationRepository()
	conversation := conversations.Create(testCharacter.SystemPrompt, testCharacter.Welcome)

	base := domain.NewAssistantMessage("the story begins")
	if err := conversations.Append(conversation.ID, domain.NewUserMessage("tell me"), base); err != nil {
		t.Fatal(err)
	}
	if _, err := conversations.ExtendContent(conversation.ID, base.ID, "a weak ending"); err != nil {
		t.Fatal(err)
	}

	client := &stubClient{reply: "a better ending"}
	updated, err := newTestRegenerator(client, conversations).Regenerate(ctx, conversation.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Only the appended suffix is rewritten; the base narrative survives.
	if updated.Content != "the story begins\n\na better ending" {
		t.Errorf("content = %q", updated.Content)
	}
	if !reflect.DeepEqual(updated.Regenerations, []string{"the story begins\n\na weak ending"}) {
		t.Errorf("regenerations = %v", updated.Regenerations)
	}

	// The model must see the base narrative it is asked to continue.
	baseIndex := -1
	for i, m := range client.lastMessages {
		if m.Role == domain.MessageRoleAssistant && m.Content == "the story begins" {
			baseIndex = i
		}
		if strings.Contains(m.Content, "a weak ending") {
			t.Errorf("outbound context contains the suffix being regenerated: %q", m.Content)
		}
	}
	if baseIndex == -1 {
		t.Fatal("base narrative missing from the outbound context")
	}
	last := client.lastMessages[len(client.lastMessages)-1]
	if last.Role != domain.MessageRoleUser || last.Content != prompt.ContinuePlaceholder {
		t.Errorf("outbound trailing message = %s %q, want user %q", last.Role, last.Content, prompt.ContinuePlaceholder)
	}
	if baseIndex != len(client.lastMessages)-2 {
		t.Errorf("base narrative at index %d, want immediately before the continue prompt", baseIndex)
	}
}
