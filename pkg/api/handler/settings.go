package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/desyr/companion-chat/pkg/api/response"
	"github.com/go-chi/chi/v5"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type CredentialStore interface {
	APIKey(ctx context.Context) (string, error)
	SetAPIKey(ctx context.Context, key string) error
}

type SignupStore interface {
	SetEmail(ctx context.Context, email string) error
}

type PasscodeGate interface {
	Length() int
	IsSet(ctx context.Context) (bool, error)
	Unlock(ctx context.Context, passcode string) (string, error)
	Unlocked(token string) bool
}

type CharacterPromptSetter interface {
	SetCharacterPrompt(prompt string)
}

// SessionCookieName carries the unlocked-session token. The cookie is
// session-scoped: no Max-Age, so it dies with the browser session.
const SessionCookieName = "companion_session"

type settings struct {
	credentials CredentialStore
	signup      SignupStore
	gate        PasscodeGate
	character   CharacterPromptSetter
	writer      response.JSONResponseWriter
}

func NewSettings(credentials CredentialStore, signup SignupStore, gate PasscodeGate, character CharacterPromptSetter) *settings {
	return &settings{
		credentials: credentials,
		signup:      signup,
		gate:        gate,
		character:   character,
	}
}

func (s *settings) RegisterRoutes(r chi.Router) {
	r.Get("/settings/credential", s.credentialStatus)
	r.Put("/settings/credential", s.setCredential)
	r.Post("/signup", s.signupEmail)
	r.Get("/passcode/status", s.passcodeStatus)
	r.Post("/passcode", s.unlock)
	r.Put("/character/prompt", s.setCharacterPrompt)
}

// credentialStatus reports presence only; the key itself never leaves the
// store.
func (s *settings) credentialStatus(w http.ResponseWriter, r *http.Request) {
	key, err := s.credentials.APIKey(r.Context())
	if err != nil {
		s.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}
	s.writer.WriteSuccessResponse(w, map[string]bool{"set": key != ""})
}

func (s *settings) setCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "API key is required")
		return
	}

	if err := s.credentials.SetAPIKey(r.Context(), strings.TrimSpace(req.APIKey)); err != nil {
		s.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}
	s.writer.WriteSuccessResponse(w, map[string]bool{"set": true})
}

func (s *settings) signupEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !emailRe.MatchString(req.Email) {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid email address")
		return
	}

	if err := s.signup.SetEmail(r.Context(), req.Email); err != nil {
		s.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}
	s.writer.WriteResponse(w, http.StatusCreated, map[string]string{"email": req.Email})
}

func (s *settings) passcodeStatus(w http.ResponseWriter, r *http.Request) {
	isSet, err := s.gate.IsSet(r.Context())
	if err != nil {
		s.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	unlocked := false
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		unlocked = s.gate.Unlocked(cookie.Value)
	}

	s.writer.WriteSuccessResponse(w, map[string]any{
		"set":      isSet,
		"unlocked": unlocked,
		"length":   s.gate.Length(),
	})
}

func (s *settings) unlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Passcode) != s.gate.Length() || !isDigits(req.Passcode) {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("passcode must be %d digits", s.gate.Length()))
		return
	}

	token, err := s.gate.Unlock(r.Context(), req.Passcode)
	if err != nil {
		s.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.writer.WriteSuccessResponse(w, map[string]bool{"unlocked": true})
}

// setCharacterPrompt overrides the character's system prompt for new
// conversations in this server session.
func (s *settings) setCharacterPrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.character.SetCharacterPrompt(strings.TrimSpace(req.Prompt))
	s.writer.WriteSuccessResponse(w, map[string]bool{"updated": true})
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
