package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRegenerableMessage is returned when regeneration is requested
	// but the conversation holds no assistant turn besides the welcome.
	ErrNoRegenerableMessage = errors.New("no message to regenerate")

	// ErrConversationBusy rejects a second completion request for a
	// conversation that already has one outstanding.
	ErrConversationBusy = errors.New("a request is already in flight for this conversation")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrPersonaNotFound      = errors.New("persona not found")

	// ErrLastPersona guards deletion: once any persona exists, at least
	// one must remain.
	ErrLastPersona = errors.New("cannot delete the last remaining persona")
)

// ConfigurationError signals a missing or invalid user-correctable setting,
// most commonly an absent API credential. It is raised before any network
// I/O is attempted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ProviderError carries a non-success response from the completion
// endpoint. The raw body is kept as diagnostic detail; the operation that
// triggered it is abandoned without state mutation.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError signals a success response missing the expected
// completion shape.
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return "malformed provider response: " + e.Detail
}
