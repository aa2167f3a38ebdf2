package handler

import (
	"errors"
	"net/http"

	"github.com/desyr/companion-chat/pkg/auth"
	"github.com/desyr/companion-chat/pkg/domain"
)

// statusFor maps core errors to HTTP status codes. Provider failures are
// transient to the user; configuration gaps ask for setup; everything
// unexpected stays a 500.
func statusFor(err error) int {
	var configurationErr *domain.ConfigurationError
	var providerErr *domain.ProviderError
	var malformedErr *domain.MalformedResponseError

	switch {
	case errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrPersonaNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConversationBusy),
		errors.Is(err, domain.ErrLastPersona):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoRegenerableMessage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrPasscodeMismatch):
		return http.StatusUnauthorized
	case errors.As(err, &configurationErr):
		return http.StatusPreconditionFailed
	case errors.As(err, &providerErr), errors.As(err, &malformedErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
