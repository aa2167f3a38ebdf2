package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/desyr/companion-chat/pkg/domain"
	"github.com/desyr/companion-chat/pkg/logger"
)

// personaRepository stores the user's persona collection and the active
// selection. The legacy flat name/avatar/bio settings remain both a
// fallback read source and a mirror target on selection, so profiles
// created before the persona collection existed keep working.
type personaRepository struct {
	db       *sql.DB
	settings *settingsRepository
}

func NewPersonaRepository(db *sql.DB, settings *settingsRepository) *personaRepository {
	return &personaRepository{db: db, settings: settings}
}

// List returns all personas in creation order. On first use with only
// legacy flat fields present, it seeds the collection with a default
// persona derived from them and makes it active.
func (p *personaRepository) List(ctx context.Context) ([]domain.Persona, error) {
	personas, err := p.list(ctx)
	if err != nil {
		return nil, err
	}
	if len(personas) > 0 {
		return personas, nil
	}

	seeded, err := p.seedFromLegacy(ctx)
	if err != nil {
		return nil, err
	}
	if seeded {
		return p.list(ctx)
	}
	return personas, nil
}

func (p *personaRepository) list(ctx context.Context) ([]domain.Persona, error) {
	const query = `SELECT id, name, avatar, bio FROM personas ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	defer rows.Close()

	var personas []domain.Persona
	for rows.Next() {
		var persona domain.Persona
		if err := rows.Scan(&persona.ID, &persona.Name, &persona.Avatar, &persona.Bio); err != nil {
			return nil, fmt.Errorf("scanning persona: %w", err)
		}
		personas = append(personas, persona)
	}
	return personas, rows.Err()
}

func (p *personaRepository) seedFromLegacy(ctx context.Context) (bool, error) {
	name, _ := p.settings.get(ctx, legacyNameKey)
	avatar, _ := p.settings.get(ctx, legacyAvatarKey)
	bio, _ := p.settings.get(ctx, legacyBioKey)

	if name == "" && avatar == "" && bio == "" {
		return false, nil
	}

	defaultPersona := domain.Persona{
		ID:     "default",
		Name:   name,
		Avatar: avatar,
		Bio:    bio,
	}
	if defaultPersona.Name == "" {
		defaultPersona.Name = domain.DefaultUserName
	}

	if err := p.insert(ctx, defaultPersona); err != nil {
		return false, err
	}
	if err := p.settings.set(ctx, activePersonaIDKey, defaultPersona.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (p *personaRepository) GetByID(ctx context.Context, id string) (domain.Persona, error) {
	const query = `SELECT id, name, avatar, bio FROM personas WHERE id = $1`

	var persona domain.Persona
	err := p.db.QueryRowContext(ctx, query, id).
		Scan(&persona.ID, &persona.Name, &persona.Avatar, &persona.Bio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Persona{}, domain.ErrPersonaNotFound
		}
		return domain.Persona{}, fmt.Errorf("fetching persona by id: %w", err)
	}
	return persona, nil
}

// Create stores a new persona and makes it active.
func (p *personaRepository) Create(ctx context.Context, persona domain.Persona) (domain.Persona, error) {
	if persona.ID == "" {
		persona.ID = "persona-" + uuid.NewString()
	}

	if err := p.insert(ctx, persona); err != nil {
		return domain.Persona{}, err
	}
	if err := p.Select(ctx, persona.ID); err != nil {
		return domain.Persona{}, err
	}
	return persona, nil
}

func (p *personaRepository) insert(ctx context.Context, persona domain.Persona) error {
	const query = `INSERT INTO personas (id, name, avatar, bio) VALUES ($1, $2, $3, $4)`

	if _, err := p.db.ExecContext(ctx, query, persona.ID, persona.Name, persona.Avatar, persona.Bio); err != nil {
		return fmt.Errorf("saving persona: %w", err)
	}
	return nil
}

// Update replaces a persona's fields in place by id. Updating the active
// persona refreshes the mirrored legacy fields too.
func (p *personaRepository) Update(ctx context.Context, persona domain.Persona) error {
	const query = `UPDATE personas SET name = $1, avatar = $2, bio = $3 WHERE id = $4`

	res, err := p.db.ExecContext(ctx, query, persona.Name, persona.Avatar, persona.Bio, persona.ID)
	if err != nil {
		return fmt.Errorf("updating persona: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrPersonaNotFound
	}

	if activeID, _ := p.settings.get(ctx, activePersonaIDKey); activeID == persona.ID {
		return p.mirrorLegacy(ctx, persona)
	}
	return nil
}

// Delete removes a persona; the last remaining persona cannot be deleted.
// Deleting the active persona re-selects the first remaining one.
func (p *personaRepository) Delete(ctx context.Context, id string) error {
	personas, err := p.list(ctx)
	if err != nil {
		return err
	}
	if len(personas) <= 1 {
		return domain.ErrLastPersona
	}

	const query = `DELETE FROM personas WHERE id = $1`
	res, err := p.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting persona: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrPersonaNotFound
	}

	if activeID, _ := p.settings.get(ctx, activePersonaIDKey); activeID == id {
		for _, remaining := range personas {
			if remaining.ID != id {
				return p.Select(ctx, remaining.ID)
			}
		}
	}
	return nil
}

// Select makes a persona active and mirrors it into the legacy flat fields.
func (p *personaRepository) Select(ctx context.Context, id string) error {
	persona, err := p.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := p.settings.set(ctx, activePersonaIDKey, persona.ID); err != nil {
		return err
	}
	return p.mirrorLegacy(ctx, persona)
}

func (p *personaRepository) mirrorLegacy(ctx context.Context, persona domain.Persona) error {
	if err := p.settings.set(ctx, legacyNameKey, persona.Name); err != nil {
		return err
	}
	if persona.Avatar != "" {
		if err := p.settings.set(ctx, legacyAvatarKey, persona.Avatar); err != nil {
			return err
		}
	}
	if persona.Bio != "" {
		return p.settings.set(ctx, legacyBioKey, persona.Bio)
	}
	return nil
}

// ActiveInfo resolves the identity injected into prompts. It never fails:
// an unset or dangling active id falls back to the legacy flat fields, and
// those falling short yields the "You" default. Storage errors are treated
// as absence.
func (p *personaRepository) ActiveInfo(ctx context.Context) domain.PersonaInfo {
	info := domain.PersonaInfo{UserName: domain.DefaultUserName}

	activeID, err := p.settings.get(ctx, activePersonaIDKey)
	if err != nil {
		slog.DebugContext(ctx, "reading active persona id", logger.Err(err))
	}

	if activeID != "" {
		persona, err := p.GetByID(ctx, activeID)
		if err == nil {
			if persona.Name != "" {
				info.UserName = persona.Name
			}
			info.UserBio = persona.Bio
			return info
		}
		if !errors.Is(err, domain.ErrPersonaNotFound) {
			slog.DebugContext(ctx, "resolving active persona", logger.Err(err))
		}
	}

	if name, _ := p.settings.get(ctx, legacyNameKey); name != "" {
		info.UserName = name
	}
	info.UserBio, _ = p.settings.get(ctx, legacyBioKey)
	return info
}
