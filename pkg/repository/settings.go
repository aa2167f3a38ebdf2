package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Storage keys, carried over from the original client's local storage so a
// migrated profile keeps working.
const (
	apiKeyKey          = "openrouter_api_key"
	emailKey           = "user_email"
	passcodeKey        = "desyr_passcode"
	activePersonaIDKey = "active_persona_id"

	// Legacy flat persona fields, kept as a fallback source and mirrored
	// on persona selection for backward compatibility.
	legacyNameKey   = "user_name"
	legacyAvatarKey = "user_avatar"
	legacyBioKey    = "user_bio"
)

// settingsRepository is a key/value store over SQLite, standing in for the
// browser's localStorage. Absent keys read as empty strings.
type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (s *settingsRepository) get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM settings WHERE key = $1`

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetching setting %q: %w", key, err)
	}
	return value, nil
}

func (s *settingsRepository) set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("saving setting %q: %w", key, err)
	}
	return nil
}

// APIKey returns the stored completion-provider credential, empty when
// none has been set.
func (s *settingsRepository) APIKey(ctx context.Context) (string, error) {
	return s.get(ctx, apiKeyKey)
}

func (s *settingsRepository) SetAPIKey(ctx context.Context, key string) error {
	return s.set(ctx, apiKeyKey, key)
}

func (s *settingsRepository) Email(ctx context.Context) (string, error) {
	return s.get(ctx, emailKey)
}

func (s *settingsRepository) SetEmail(ctx context.Context, email string) error {
	return s.set(ctx, emailKey, email)
}

// Passcode returns the stored plaintext passcode digits, empty when none
// has been set yet.
func (s *settingsRepository) Passcode(ctx context.Context) (string, error) {
	return s.get(ctx, passcodeKey)
}

func (s *settingsRepository) SetPasscode(ctx context.Context, passcode string) error {
	return s.set(ctx, passcodeKey, passcode)
}
