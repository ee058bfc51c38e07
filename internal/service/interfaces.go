package service

import (
	"context"

	"github.com/rryowa/krychek/internal/models"
)

// TokenProvider mints a new access token from a refresh token.
type TokenProvider interface {
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenGrant, error)
}

// AuthProvider runs the authorization code flow.
type AuthProvider interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*models.TokenGrant, error)
}

type ProfileFetcher interface {
	GetCurrentUser(ctx context.Context, accessToken string) (*models.SpotifyProfile, error)
}

type EventNotifier interface {
	Notify(ctx context.Context, event models.SessionEvent)
}
