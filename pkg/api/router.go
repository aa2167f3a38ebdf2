package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desyr/companion-chat/pkg/api/handler"
)

// NewRouter wires the HTTP surface: persona and settings management stay
// reachable while locked; the conversation routes sit behind the passcode
// gate once a passcode exists.
func NewRouter(
	chatService handler.ChatService,
	regenerator handler.RegenerationService,
	personas handler.PersonaRepository,
	credentials handler.CredentialStore,
	signup handler.SignupStore,
	gate handler.PasscodeGate,
	character handler.CharacterPromptSetter,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	chatHandler := handler.NewChat(chatService, regenerator)
	personaHandler := handler.NewPersona(personas)
	settingsHandler := handler.NewSettings(credentials, signup, gate, character)

	r.Route("/api", func(api chi.Router) {
		settingsHandler.RegisterRoutes(api)
		personaHandler.RegisterRoutes(api)

		api.Group(func(locked chi.Router) {
			locked.Use(requireUnlocked(gate))
			chatHandler.RegisterRoutes(locked)
		})
	})

	return r
}

// requireUnlocked rejects conversation traffic when a passcode is set and
// the session has not entered it. With no passcode stored the gate is
// open.
func requireUnlocked(gate handler.PasscodeGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isSet, err := gate.IsSet(r.Context())
			if err != nil {
				http.Error(w, "checking passcode", http.StatusInternalServerError)
				return
			}

			if isSet {
				cookie, err := r.Cookie(handler.SessionCookieName)
				if err != nil || !gate.Unlocked(cookie.Value) {
					http.Error(w, "locked", http.StatusUnauthorized)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
