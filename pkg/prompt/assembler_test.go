package prompt

import (
	"strings"
	"testing"

	"github.com/desyr/companion-chat/pkg/domain"
)

func roleSequence(messages []domain.Message) string {
	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.Role
	}
	return strings.Join(roles, " ")
}

func TestAssemble_Ordering(t *testing.T) {
	history := []domain.Message{
		domain.NewSystemMessage("primary prompt"),
		domain.NewWelcomeMessage("hello there"),
		domain.NewUserMessage("hi"),
		domain.NewAssistantMessage("hi yourself"),
	}

	out := NewAssembler().Assemble(history, Input{
		Persona:      domain.PersonaInfo{UserName: domain.DefaultUserName},
		Instructions: "be brief",
		VisibleText:  "tell me a story",
	})

	want := "system system system assistant user assistant user"
	if got := roleSequence(out); got != want {
		t.Fatalf("role sequence = %q, want %q", got, want)
	}

	if out[0].Content != "primary prompt" {
		t.Errorf("first message = %q, want the stored system prompt", out[0].Content)
	}
	if !strings.Contains(out[1].Content, "Remember the entire conversation context") {
		t.Errorf("second message missing continuity directive: %q", out[1].Content)
	}
	if !strings.Contains(out[2].Content, "TEMPORARY INSTRUCTION FOR THIS RESPONSE ONLY: be brief") {
		t.Errorf("third message missing wrapped instruction: %q", out[2].Content)
	}
	if last := out[len(out)-1]; last.Content != "tell me a story" {
		t.Errorf("trailing user message = %q, want the visible text", last.Content)
	}
}

func TestAssemble_InstructionsOnly(t *testing.T) {
	history := []domain.Message{domain.NewSystemMessage("primary prompt")}

	out := NewAssembler().Assemble(history, Input{Instructions: "whisper"})

	for _, m := range out {
		if m.Role == domain.MessageRoleUser {
			t.Fatalf("instruction-only input produced a user message: %q", m.Content)
		}
	}
}

func TestAssemble_Continuation(t *testing.T) {
	history := []domain.Message{
		domain.NewSystemMessage("primary prompt"),
		domain.NewUserMessage("hi"),
		domain.NewAssistantMessage("a story begins"),
	}

	out := NewAssembler().Assemble(history, Input{Continuation: true})

	directiveIndex := -1
	firstConversationIndex := -1
	for i, m := range out {
		if strings.Contains(m.Content, "Continue from your previous message") {
			directiveIndex = i
		}
		if m.Content == "hi" && firstConversationIndex == -1 {
			firstConversationIndex = i
		}
	}
	if directiveIndex == -1 {
		t.Fatal("continuation directive not found")
	}
	if firstConversationIndex != -1 && directiveIndex > firstConversationIndex {
		t.Errorf("continuation directive at %d, after conversation start %d", directiveIndex, firstConversationIndex)
	}

	if last := out[len(out)-1]; last.Role != domain.MessageRoleUser || last.Content != ContinuePlaceholder {
		t.Errorf("trailing message = %s %q, want user %q", last.Role, last.Content, ContinuePlaceholder)
	}
}

func TestAssemble_PersonaInjection(t *testing.T) {
	tests := []struct {
		name    string
		persona domain.PersonaInfo
		want    []string
		absent  []string
	}{
		{
			name:    "named persona with bio",
			persona: domain.PersonaInfo{UserName: "Sam", UserBio: "a night-shift nurse"},
			want: []string{
				"The user's name is Sam",
				"Important context about the user: a night-shift nurse",
			},
		},
		{
			name:    "default name is not announced",
			persona: domain.PersonaInfo{UserName: domain.DefaultUserName},
			absent:  []string{"The user's name is"},
		},
		{
			name:    "bio without name",
			persona: domain.PersonaInfo{UserName: domain.DefaultUserName, UserBio: "afraid of storms"},
			want:    []string{"Important context about the user: afraid of storms"},
			absent:  []string{"The user's name is"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewAssembler().Assemble(nil, Input{Persona: tt.persona, VisibleText: "hi"})

			continuity := out[0].Content
			for _, fragment := range tt.want {
				if !strings.Contains(continuity, fragment) {
					t.Errorf("continuity prompt missing %q:\n%s", fragment, continuity)
				}
			}
			for _, fragment := range tt.absent {
				if strings.Contains(continuity, fragment) {
					t.Errorf("continuity prompt unexpectedly contains %q:\n%s", fragment, continuity)
				}
			}
		})
	}
}

func TestAssembleForRegeneration(t *testing.T) {
	history := []domain.Message{
		domain.NewSystemMessage("primary prompt"),
		domain.NewUserMessage("first question"),
		domain.NewAssistantMessage("first answer"),
		domain.NewUserMessage("second question"),
		domain.NewAssistantMessage("second answer"),
	}

	out := NewAssembler().AssembleForRegeneration(history, domain.PersonaInfo{}, 4)

	for _, m := range out {
		if m.Content == "second answer" {
			t.Error("regeneration context contains the turn being regenerated")
		}
	}
	if !strings.Contains(out[1].Content, "Maintain continuity with your previous") {
		t.Errorf("missing regeneration directive: %q", out[1].Content)
	}
	if last := out[len(out)-1]; last.Role != domain.MessageRoleUser || last.Content != "second question" {
		t.Errorf("trailing message = %s %q, want the prompting user turn", last.Role, last.Content)
	}
}

func TestAssembleForRegeneration_ContinuationTarget(t *testing.T) {
	continuation := domain.NewAssistantMessage("and then some more")
	continuation.IsContinuation = true

	history := []domain.Message{
		domain.NewSystemMessage("primary prompt"),
		domain.NewUserMessage("hi"),
		domain.NewAssistantMessage("a story"),
		continuation,
	}

	out := NewAssembler().AssembleForRegeneration(history, domain.PersonaInfo{}, 3)

	if last := out[len(out)-1]; last.Content != ContinuePlaceholder {
		t.Errorf("trailing message = %q, want %q", last.Content, ContinuePlaceholder)
	}
}

func TestAssembleForRegeneration_AppendedContinuationTarget(t *testing.T) {
	// An appended continuation merges its suffix into the target, so the
	// narrative being continued lives only on the target itself.
	merged := domain.NewAssistantMessage("the story begins\n\na weak ending")
	merged.IsContinuation = true
	merged.ContinuationBase = "the story begins"

	history := []domain.Message{
		domain.NewSystemMessage("primary prompt"),
		domain.NewUserMessage("tell me"),
		merged,
	}

	out := NewAssembler().AssembleForRegeneration(history, domain.PersonaInfo{}, 2)

	last := out[len(out)-1]
	if last.Role != domain.MessageRoleUser || last.Content != ContinuePlaceholder {
		t.Fatalf("trailing message = %s %q, want user %q", last.Role, last.Content, ContinuePlaceholder)
	}
	base := out[len(out)-2]
	if base.Role != domain.MessageRoleAssistant || base.Content != "the story begins" {
		t.Errorf("message before the continue prompt = %s %q, want the assistant base narrative", base.Role, base.Content)
	}

	for _, m := range out {
		if m.Content == merged.Content {
			t.Error("regeneration context contains the merged turn being regenerated")
		}
	}
}
