package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rryowa/krychek/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	// ErrCredentialConflict means the stored credential no longer matches the one a write was based on.
	ErrCredentialConflict = errors.New("credential changed concurrently")
)

// AdmissionStore keeps fixed-window counters per identity key.
// Admit must check and count atomically with respect to other callers.
type AdmissionStore interface {
	Admit(ctx context.Context, key string, policy models.RateLimitPolicy, now time.Time) (models.AdmissionDecision, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// SwapCredential replaces the credential of session id with next only if the
	// stored one is still prev.
	SwapCredential(ctx context.Context, id string, prev, next models.Credential) error
	DeleteSession(ctx context.Context, id string) error
}

type UserRepository interface {
	UpsertUser(ctx context.Context, identity models.Identity, at time.Time) (*models.User, error)
	GetUserBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
}
