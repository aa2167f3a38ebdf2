package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/desyr/companion-chat/pkg/api/response"
	"github.com/desyr/companion-chat/pkg/domain"
	"github.com/desyr/companion-chat/pkg/logger"
	"github.com/desyr/companion-chat/pkg/render"
)

type ChatService interface {
	StartConversation(ctx context.Context) domain.Conversation
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)
	Busy(conversationID string) bool
	Send(ctx context.Context, conversationID, input string) (domain.Message, error)
	Continue(ctx context.Context, conversationID string) (domain.Message, error)
	EditMessage(ctx context.Context, conversationID, messageID, content string) (domain.Message, error)
	ToggleRemembered(ctx context.Context, conversationID, messageID string) (bool, error)
	NewChat(ctx context.Context, conversationID string) (domain.Message, error)
}

type RegenerationService interface {
	Regenerate(ctx context.Context, conversationID string) (domain.Message, error)
}

type chat struct {
	service     ChatService
	regenerator RegenerationService
	writer      response.JSONResponseWriter
}

func NewChat(service ChatService, regenerator RegenerationService) *chat {
	return &chat{
		service:     service,
		regenerator: regenerator,
	}
}

func (c *chat) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", c.startConversation)
	r.Get("/conversations/{conversationID}/messages", c.listMessages)
	r.Post("/conversations/{conversationID}/messages", c.send)
	r.Post("/conversations/{conversationID}/continue", c.continueReply)
	r.Post("/conversations/{conversationID}/regenerate", c.regenerate)
	r.Patch("/conversations/{conversationID}/messages/{messageID}", c.edit)
	r.Post("/conversations/{conversationID}/messages/{messageID}/remember", c.remember)
	r.Post("/conversations/{conversationID}/reset", c.reset)
}

// displayMessage is a message prepared for rendering: raw content plus
// markdown HTML.
type displayMessage struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	HTML           string    `json:"html"`
	Remembered     bool      `json:"remembered"`
	Regenerations  []string  `json:"regenerations,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	IsContinuation bool      `json:"isContinuation,omitempty"`
}

func toDisplay(m domain.Message) displayMessage {
	return displayMessage{
		ID:             m.ID,
		Role:           m.Role,
		Content:        m.Content,
		HTML:           render.Markdown(m.Content),
		Remembered:     m.Remembered,
		Regenerations:  m.Regenerations,
		Timestamp:      m.Timestamp,
		IsContinuation: m.IsContinuation,
	}
}

func (c *chat) startConversation(w http.ResponseWriter, r *http.Request) {
	conversation := c.service.StartConversation(r.Context())

	c.writer.WriteResponse(w, http.StatusCreated, map[string]any{
		"id": conversation.ID,
	})
}

func (c *chat) listMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := c.service.Messages(r.Context(), conversationID)
	if err != nil {
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	visible := lo.Filter(messages, func(m domain.Message, _ int) bool {
		return m.Role != domain.MessageRoleSystem
	})

	c.writer.WriteSuccessResponse(w, map[string]any{
		"messages": lo.Map(visible, func(m domain.Message, _ int) displayMessage { return toDisplay(m) }),
		"loading":  c.service.Busy(conversationID),
	})
}

func (c *chat) send(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	ctx := logger.ContextWithConversationID(r.Context(), conversationID)

	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "message is empty")
		return
	}

	reply, err := c.service.Send(ctx, conversationID, req.Input)
	if err != nil {
		slog.ErrorContext(ctx, "sending message", logger.Err(err))
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	c.writer.WriteSuccessResponse(w, toDisplay(reply))
}

func (c *chat) continueReply(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	ctx := logger.ContextWithConversationID(r.Context(), conversationID)

	reply, err := c.service.Continue(ctx, conversationID)
	if err != nil {
		slog.ErrorContext(ctx, "continuing reply", logger.Err(err))
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	c.writer.WriteSuccessResponse(w, toDisplay(reply))
}

func (c *chat) regenerate(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	ctx := logger.ContextWithConversationID(r.Context(), conversationID)

	updated, err := c.regenerator.Regenerate(ctx, conversationID)
	if err != nil {
		slog.ErrorContext(ctx, "regenerating reply", logger.Err(err))
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	c.writer.WriteSuccessResponse(w, toDisplay(updated))
}

func (c *chat) edit(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")
	ctx := logger.ContextWithConversationID(r.Context(), conversationID)

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "content is empty")
		return
	}

	updated, err := c.service.EditMessage(ctx, conversationID, messageID, req.Content)
	if err != nil {
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	c.writer.WriteSuccessResponse(w, toDisplay(updated))
}

func (c *chat) remember(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")

	remembered, err := c.service.ToggleRemembered(r.Context(), conversationID, messageID)
	if err != nil {
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	c.writer.WriteSuccessResponse(w, map[string]any{
		"id":         messageID,
		"remembered": remembered,
	})
}

func (c *chat) reset(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	ctx := logger.ContextWithConversationID(r.Context(), conversationID)

	welcome, err := c.service.NewChat(ctx, conversationID)
	if err != nil {
		c.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	c.writer.WriteSuccessResponse(w, toDisplay(welcome))
}
