package repository

import (
	"errors"
	"reflect"
	"testing"

	"github.com/desyr/companion-chat/pkg/domain"
)

func TestConversationRepository_Create(t *testing.T) {
	repo := NewConversationRepository()

	conversation := repo.Create("be a companion", "welcome in")

	if len(conversation.Messages) != 2 {
		t.Fatalf("seeded messages = %d, want 2", len(conversation.Messages))
	}
	system := conversation.Messages[0]
	if system.ID != domain.PrimarySystemMessageID || system.Role != domain.MessageRoleSystem {
		t.Errorf("first message = %s/%s, want %s/system", system.ID, system.Role, domain.PrimarySystemMessageID)
	}
	welcome := conversation.Messages[1]
	if welcome.Role != domain.MessageRoleAssistant || !welcome.IsWelcome() {
		t.Errorf("second message = %s/%v, want a welcome assistant turn", welcome.Role, welcome.IsWelcome())
	}
}

func TestConversationRepository_GetUnknown(t *testing.T) {
	repo := NewConversationRepository()

	if _, err := repo.Get("nope"); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Errorf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestConversationRepository_MessagesAreCopies(t *testing.T) {
	repo := NewConversationRepository()
	conversation := repo.Create("prompt", "welcome")

	messages, err := repo.Messages(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}
	messages[0].Content = "tampered"

	fresh, err := repo.Messages(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh[0].Content != "prompt" {
		t.Error("mutation of a returned slice leaked into the store")
	}
}

func TestConversationRepository_ReplaceContent(t *testing.T) {
	repo := NewConversationRepository()
	conversation := repo.Create("prompt", "welcome")

	message := domain.NewAssistantMessage("first version")
	if err := repo.Append(conversation.ID, message); err != nil {
		t.Fatal(err)
	}

	updated, err := repo.ReplaceContent(conversation.ID, message.ID, "second version")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Content != "second version" {
		t.Errorf("content = %q", updated.Content)
	}
	if !reflect.DeepEqual(updated.Regenerations, []string{"first version"}) {
		t.Errorf("regenerations = %v, want [first version]", updated.Regenerations)
	}
	if updated.ID != message.ID || updated.Role != message.Role {
		t.Error("identity fields changed on replace")
	}

	// Replacing with the current content must not record a version.
	updated, err = repo.ReplaceContent(conversation.ID, message.ID, "second version")
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Regenerations) != 1 {
		t.Errorf("regenerations after no-op replace = %v", updated.Regenerations)
	}

	// Cycling back to an already recorded version must not duplicate it.
	if _, err = repo.ReplaceContent(conversation.ID, message.ID, "first version"); err != nil {
		t.Fatal(err)
	}
	updated, err = repo.ReplaceContent(conversation.ID, message.ID, "third version")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"first version", "second version", "first version"}
	if !reflect.DeepEqual(updated.Regenerations, want) {
		t.Errorf("regenerations = %v, want %v", updated.Regenerations, want)
	}
}

func TestConversationRepository_ExtendContent(t *testing.T) {
	repo := NewConversationRepository()
	conversation := repo.Create("prompt", "welcome")

	message := domain.NewAssistantMessage("the story begins")
	if err := repo.Append(conversation.ID, message); err != nil {
		t.Fatal(err)
	}

	extended, err := repo.ExtendContent(conversation.ID, message.ID, "and it continues")
	if err != nil {
		t.Fatal(err)
	}
	if extended.Content != "the story begins\n\nand it continues" {
		t.Errorf("content = %q", extended.Content)
	}
	if extended.ContinuationBase != "the story begins" {
		t.Errorf("continuation base = %q", extended.ContinuationBase)
	}
	if !extended.IsContinuation {
		t.Error("extended message not marked as continuation")
	}
}

func TestConversationRepository_ToggleRemembered(t *testing.T) {
	repo := NewConversationRepository()
	conversation := repo.Create("prompt", "welcome")

	message := domain.NewUserMessage("keep this")
	if err := repo.Append(conversation.ID, message); err != nil {
		t.Fatal(err)
	}

	on, err := repo.ToggleRemembered(conversation.ID, message.ID)
	if err != nil {
		t.Fatal(err)
	}
	off, err := repo.ToggleRemembered(conversation.ID, message.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !on || off {
		t.Errorf("toggle sequence = %v, %v, want true, false", on, off)
	}

	if _, err := repo.ToggleRemembered(conversation.ID, "missing"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Errorf("error = %v, want ErrMessageNotFound", err)
	}
}

func TestConversationRepository_Reset(t *testing.T) {
	repo := NewConversationRepository()
	conversation := repo.Create("prompt", "welcome")

	remembered := domain.NewUserMessage("remember me")
	forgotten := domain.NewAssistantMessage("forget me")
	if err := repo.Append(conversation.ID, remembered, forgotten); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ToggleRemembered(conversation.ID, remembered.ID); err != nil {
		t.Fatal(err)
	}

	welcome, err := repo.Reset(conversation.ID, "welcome back")
	if err != nil {
		t.Fatal(err)
	}
	if !welcome.IsWelcome() || welcome.Content != "welcome back" {
		t.Errorf("reset returned %s %q, want a fresh welcome", welcome.ID, welcome.Content)
	}

	messages, err := repo.Messages(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, m := range messages {
		got = append(got, m.Content)
	}
	// The original welcome is not remembered and does not survive.
	want := []string{"prompt", "remember me", "welcome back"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("retained contents = %v, want %v", got, want)
	}
}

func TestConversationRepository_LatestRegenerable(t *testing.T) {
	repo := NewConversationRepository()
	conversation := repo.Create("prompt", "welcome")

	// The welcome greeting alone never qualifies.
	if _, _, err := repo.LatestRegenerable(conversation.ID); !errors.Is(err, domain.ErrNoRegenerableMessage) {
		t.Fatalf("error = %v, want ErrNoRegenerableMessage", err)
	}

	reply := domain.NewAssistantMessage("a real reply")
	later := domain.NewUserMessage("a follow-up question")
	if err := repo.Append(conversation.ID, domain.NewUserMessage("hi"), reply, later); err != nil {
		t.Fatal(err)
	}

	target, index, err := repo.LatestRegenerable(conversation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if target.ID != reply.ID {
		t.Errorf("target = %s, want %s", target.ID, reply.ID)
	}
	if index != 3 {
		t.Errorf("index = %d, want 3", index)
	}
}
