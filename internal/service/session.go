package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage"
	"github.com/rryowa/krychek/internal/util"
)

var (
	ErrUnauthenticated      = errors.New("unauthorized")
	ErrRefreshFailed        = errors.New("token refresh failed")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidState         = errors.New("invalid oauth state")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

const tokenStatusValid = "valid"

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionService owns the session mechanism: the OAuth handshake, the
// signed session cookie and the server-side credential record behind it.
type SessionService struct {
	sessions    storage.SessionRepository
	users       storage.UserRepository
	tokens      *TokenManager
	auth        AuthProvider
	profiles    ProfileFetcher
	notifier    EventNotifier
	secret      []byte
	ttl         time.Duration
	adminEmails map[string]struct{}
	log         *zap.SugaredLogger
	now         func() time.Time
}

func NewSessionService(
	cfg *util.SessionConfig,
	sessions storage.SessionRepository,
	users storage.UserRepository,
	tokens *TokenManager,
	auth AuthProvider,
	profiles ProfileFetcher,
	notifier EventNotifier,
	log *zap.SugaredLogger,
) *SessionService {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[strings.ToLower(e)] = struct{}{}
	}

	return &SessionService{
		sessions:    sessions,
		users:       users,
		tokens:      tokens,
		auth:        auth,
		profiles:    profiles,
		notifier:    notifier,
		secret:      cfg.Secret,
		ttl:         cfg.TTL,
		adminEmails: admins,
		log:         log,
		now:         time.Now,
	}
}

// BeginLogin returns a fresh state value and the provider URL to redirect to.
func (s *SessionService) BeginLogin() (state, redirectURL string, err error) {
	raw := make([]byte, util.RawStateLength)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	state = hex.EncodeToString(raw)
	return state, s.auth.AuthorizeURL(state), nil
}

// CheckState compares the state echoed by the provider with the one issued.
func CheckState(expected, got string) error {
	if expected == "" || got == "" {
		return ErrInvalidState
	}
	if len(expected) != len(got) || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return ErrInvalidState
	}
	return nil
}

// CompleteLogin exchanges the authorization code, resolves the identity and
// creates a new session. It returns the session and its signed cookie value.
func (s *SessionService) CompleteLogin(ctx context.Context, code string) (*models.Session, string, error) {
	grant, err := s.auth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("complete login: %w", err)
	}

	profile, err := s.profiles.GetCurrentUser(ctx, grant.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("fetch profile: %w", err)
	}

	now := s.now()
	identity := models.Identity{
		SubjectID:   profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
	}

	user, err := s.users.UpsertUser(ctx, identity, now)
	if err != nil {
		return nil, "", fmt.Errorf("record user: %w", err)
	}

	session := models.Session{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Identity: identity,
		Credential: models.Credential{
			RefreshToken: grant.RefreshToken,
			Status:       models.CredentialActive,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	session.Credential.ApplyGrant(*grant, now)

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	token, err := s.signSession(session)
	if err != nil {
		return nil, "", err
	}

	s.log.Infow("user signed in", "userID", user.ID, "sessionID", session.ID)
	s.notify(ctx, EventLogin, &session)

	return &session, token, nil
}

// Authenticate maps a session cookie value to its live session. It never refreshes.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sessionID, err := s.parseSession(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// ResolveCredential makes the session's credential usable for an upstream call,
// persisting any change. It returns ErrRefreshFailed for a flagged record.
// The write is conditional on the stored credential: when another request
// already changed it, that result is adopted instead.
func (s *SessionService) ResolveCredential(ctx context.Context, session *models.Session) error {
	if session.Credential.State(s.now()) == models.CredentialExpired {
		if err := s.reload(ctx, session); err != nil {
			return err
		}
	}

	prev := session.Credential
	if s.tokens.Resolve(ctx, &session.Credential) {
		err := s.sessions.SwapCredential(ctx, session.ID, prev, session.Credential)
		switch {
		case err == nil:
			if session.Credential.Status == models.CredentialStatusRefreshErr {
				s.notify(ctx, EventRefreshFailed, session)
			}
		case errors.Is(err, storage.ErrSessionNotFound):
			return ErrUnauthenticated
		case errors.Is(err, storage.ErrCredentialConflict):
			s.log.Debugw("credential changed by a concurrent request", "sessionID", session.ID)
			if err := s.reload(ctx, session); err != nil {
				return err
			}
		default:
			s.log.Errorw("failed to persist credential", "sessionID", session.ID, "error", err)
		}
	}

	if session.Credential.State(s.now()) == models.CredentialRefreshFailed {
		return ErrRefreshFailed
	}
	return nil
}

// reload replaces the local credential with the stored one.
func (s *SessionService) reload(ctx context.Context, session *models.Session) error {
	stored, err := s.sessions.GetSession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrUnauthenticated
		}
		s.log.Warnw("failed to reload session", "sessionID", session.ID, "error", err)
		return nil
	}
	session.Credential = stored.Credential
	return nil
}

// Logout deletes the session named by token. Unknown or invalid tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sessionID, err := s.parseSession(token)
	if err != nil {
		return nil //nolint:nilerr // nothing to sign out of
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("load session: %w", err)
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if session != nil {
		s.notify(ctx, EventLogout, session)
	}
	return nil
}

func (s *SessionService) IsAdmin(email string) bool {
	if email == "" {
		return false
	}
	_, ok := s.adminEmails[strings.ToLower(email)]
	return ok
}

func (s *SessionService) RequireAdmin(session *models.Session) error {
	if !s.IsAdmin(session.Identity.Email) {
		return ErrForbidden
	}
	return nil
}

func (s *SessionService) SessionInfo(session *models.Session) models.SessionResponse {
	status := tokenStatusValid
	if session.Credential.Status == models.CredentialStatusRefreshErr {
		status = models.RefreshAccessTokenError
	}
	return models.SessionResponse{
		User: models.SessionUser{
			ID:      session.Identity.SubjectID,
			Email:   session.Identity.Email,
			Name:    session.Identity.DisplayName,
			IsAdmin: s.IsAdmin(session.Identity.Email),
		},
		TokenStatus: status,
		ExpiresAt:   session.ExpiresAt,
	}
}

func (s *SessionService) AdminSessionInfo(ctx context.Context, session *models.Session) (models.AdminSessionResponse, error) {
	info := models.AdminSessionResponse{
		SessionResponse: s.SessionInfo(session),
		SessionID:       session.ID,
		CreatedAt:       session.CreatedAt,
		State:           session.Credential.State(s.now()).String(),
	}

	user, err := s.users.GetUserBySpotifyID(ctx, session.Identity.SubjectID)
	switch {
	case err == nil:
		info.Directory = user
	case errors.Is(err, storage.ErrUserNotFound):
	default:
		return models.AdminSessionResponse{}, fmt.Errorf("lookup user: %w", err)
	}
	return info, nil
}

func (s *SessionService) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SessionTTL is the lifetime of a new session and its cookie.
func (s *SessionService) SessionTTL() time.Duration {
	return s.ttl
}

func (s *SessionService) signSession(session models.Session) (string, error) {
	claims := &sessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   session.Identity.SubjectID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signed, nil
}

func (s *SessionService) parseSession(token string) (string, error) {
	if strings.Count(token, ".") != util.TokenPartsExpected-1 {
		return "", jwt.ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}

	parsed, err := jwt.ParseWithClaims(
		token,
		&sessionClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.SessionID, nil
}

func (s *SessionService) notify(ctx context.Context, event string, session *models.Session) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.SessionEvent{
		Event:     event,
		UserID:    strconv.FormatInt(session.UserID, 10),
		SessionID: session.ID,
		At:        s.now(),
	})
}
