package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrPasscodeMismatch = errors.New("incorrect passcode")

type PasscodeStore interface {
	Passcode(ctx context.Context) (string, error)
	SetPasscode(ctx context.Context, passcode string) error
}

// passcodeGate implements the local lock screen: the first submitted
// passcode is stored, every later one is compared against it. Unlocked
// state is session-scoped and lives only in memory, so it dies with the
// process while the passcode itself persists.
type passcodeGate struct {
	store  PasscodeStore
	length int

	mu       sync.RWMutex
	sessions map[string]struct{}
}

func NewPasscodeGate(store PasscodeStore, length int) *passcodeGate {
	return &passcodeGate{
		store:    store,
		length:   length,
		sessions: make(map[string]struct{}),
	}
}

// Length is the required number of passcode digits.
func (g *passcodeGate) Length() int { return g.length }

// IsSet reports whether a passcode has been stored before.
func (g *passcodeGate) IsSet(ctx context.Context) (bool, error) {
	stored, err := g.store.Passcode(ctx)
	if err != nil {
		return false, err
	}
	return stored != "", nil
}

// Unlock verifies the passcode, storing it on first use, and returns a
// session token marking this session unlocked.
func (g *passcodeGate) Unlock(ctx context.Context, passcode string) (string, error) {
	stored, err := g.store.Passcode(ctx)
	if err != nil {
		return "", err
	}

	if stored == "" {
		if err := g.store.SetPasscode(ctx, passcode); err != nil {
			return "", err
		}
	} else if passcode != stored {
		return "", ErrPasscodeMismatch
	}

	token := uuid.NewString()
	g.mu.Lock()
	g.sessions[token] = struct{}{}
	g.mu.Unlock()

	return token, nil
}

// Unlocked reports whether the session token belongs to an unlocked
// session.
func (g *passcodeGate) Unlocked(token string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.sessions[token]
	return ok
}
