package models

import "time"

// CredentialState is the observable state of a delegated-access credential.
type CredentialState int

const (
	CredentialFresh CredentialState = iota
	CredentialExpired
	CredentialRefreshFailed
)

func (s CredentialState) String() string {
	switch s {
	case CredentialFresh:
		return "fresh"
	case CredentialExpired:
		return "expired"
	case CredentialRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// CredentialStatus is what the record stores. Fresh and Expired are derived
// from the clock, so only the sticky failure needs to be persisted.
type CredentialStatus string

const (
	CredentialActive           CredentialStatus = "active"
	CredentialStatusRefreshErr CredentialStatus = "refresh_failed"
)

// RefreshAccessTokenError is the token status reported to clients once a refresh failed.
const RefreshAccessTokenError = "RefreshAccessTokenError"

type Identity struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type Credential struct {
	AccessToken          string           `json:"access_token"`
	RefreshToken         string           `json:"refresh_token"`
	AccessTokenExpiresAt time.Time        `json:"access_token_expires_at"`
	Status               CredentialStatus `json:"status"`
}

// State reports the credential state at now. A failed refresh dominates expiry.
func (c *Credential) State(now time.Time) CredentialState {
	if c.Status == CredentialStatusRefreshErr {
		return CredentialRefreshFailed
	}
	if now.Before(c.AccessTokenExpiresAt) {
		return CredentialFresh
	}
	return CredentialExpired
}

// ApplyGrant replaces the token fields in place after a successful refresh.
// The refresh token is kept when the provider does not rotate it.
func (c *Credential) ApplyGrant(g TokenGrant, now time.Time) {
	c.AccessToken = g.AccessToken
	c.AccessTokenExpiresAt = now.Add(time.Duration(g.ExpiresIn) * time.Second)
	if g.RefreshToken != "" {
		c.RefreshToken = g.RefreshToken
	}
	c.Status = CredentialActive
}

// Same reports whether o holds the same tokens and status as c.
func (c Credential) Same(o Credential) bool {
	return c.AccessToken == o.AccessToken &&
		c.RefreshToken == o.RefreshToken &&
		c.Status == o.Status &&
		c.AccessTokenExpiresAt.Equal(o.AccessTokenExpiresAt)
}

func (c *Credential) MarkRefreshFailed() {
	c.Status = CredentialStatusRefreshErr
}

// TokenGrant is a token endpoint response.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
