package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/desyr/companion-chat/pkg/api/response"
	"github.com/desyr/companion-chat/pkg/domain"
)

type PersonaRepository interface {
	List(ctx context.Context) ([]domain.Persona, error)
	Create(ctx context.Context, persona domain.Persona) (domain.Persona, error)
	Update(ctx context.Context, persona domain.Persona) error
	Delete(ctx context.Context, id string) error
	Select(ctx context.Context, id string) error
}

type persona struct {
	personas PersonaRepository
	writer   response.JSONResponseWriter
}

func NewPersona(personas PersonaRepository) *persona {
	return &persona{personas: personas}
}

func (p *persona) RegisterRoutes(r chi.Router) {
	r.Get("/personas", p.list)
	r.Post("/personas", p.create)
	r.Put("/personas/{personaID}", p.update)
	r.Delete("/personas/{personaID}", p.delete)
	r.Post("/personas/{personaID}/select", p.selectPersona)
}

type personaRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Bio    string `json:"bio"`
}

func (p *persona) decode(w http.ResponseWriter, r *http.Request) (personaRequest, bool) {
	var req personaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		p.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.Name) == "" {
		p.writer.WriteErrorResponse(w, http.StatusBadRequest, "persona name is required")
		return req, false
	}
	if req.Avatar != "" && !strings.HasPrefix(req.Avatar, "data:image/") &&
		!strings.HasPrefix(req.Avatar, "http://") && !strings.HasPrefix(req.Avatar, "https://") {
		p.writer.WriteErrorResponse(w, http.StatusBadRequest, "avatar must be an image")
		return req, false
	}
	return req, true
}

func (p *persona) list(w http.ResponseWriter, r *http.Request) {
	personas, err := p.personas.List(r.Context())
	if err != nil {
		p.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}
	if personas == nil {
		personas = []domain.Persona{}
	}
	p.writer.WriteSuccessResponse(w, personas)
}

func (p *persona) create(w http.ResponseWriter, r *http.Request) {
	req, ok := p.decode(w, r)
	if !ok {
		return
	}

	created, err := p.personas.Create(r.Context(), domain.Persona{
		Name:   req.Name,
		Avatar: req.Avatar,
		Bio:    req.Bio,
	})
	if err != nil {
		p.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	p.writer.WriteResponse(w, http.StatusCreated, created)
}

func (p *persona) update(w http.ResponseWriter, r *http.Request) {
	req, ok := p.decode(w, r)
	if !ok {
		return
	}

	updated := domain.Persona{
		ID:     chi.URLParam(r, "personaID"),
		Name:   req.Name,
		Avatar: req.Avatar,
		Bio:    req.Bio,
	}
	if err := p.personas.Update(r.Context(), updated); err != nil {
		p.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	p.writer.WriteSuccessResponse(w, updated)
}

func (p *persona) delete(w http.ResponseWriter, r *http.Request) {
	if err := p.personas.Delete(r.Context(), chi.URLParam(r, "personaID")); err != nil {
		p.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *persona) selectPersona(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")

	if err := p.personas.Select(r.Context(), personaID); err != nil {
		p.writer.WriteErrorResponse(w, statusFor(err), err.Error())
		return
	}

	p.writer.WriteSuccessResponse(w, map[string]string{"active": personaID})
}
