package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/spotify"
	"github.com/rryowa/krychek/internal/storage/memory"
	"github.com/rryowa/krychek/internal/util"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeAuthProvider struct {
	grant *models.TokenGrant
	err   error
}

func (f *fakeAuthProvider) AuthorizeURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeAuthProvider) ExchangeCode(_ context.Context, code string) (*models.TokenGrant, error) {
	if f.err != nil {
		return nil, f.err
	}
	if code != "good-code" {
		return nil, fmt.Errorf("%w: invalid_grant", spotify.ErrTokenRejected)
	}
	return f.grant, nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetCurrentUser(_ context.Context, _ string) (*models.SpotifyProfile, error) {
	return &models.SpotifyProfile{ID: "spotify-user", Email: "Admin@Example.com", DisplayName: "Listener"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, e models.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Event)
}

type sessionFixture struct {
	svc      *SessionService
	sessions *memory.InMemorySessionManager
	provider *fakeTokenProvider
	notifier *recordingNotifier
}

func newSessionFixture(t *testing.T, refresh ...func() (*models.TokenGrant, error)) *sessionFixture {
	t.Helper()
	log := zap.NewNop().Sugar()

	if len(refresh) == 0 {
		refresh = append(refresh, grantOK("refreshed-access", ""))
	}
	provider := &fakeTokenProvider{results: refresh}
	tokens := NewTokenManager(provider, &util.RefreshConfig{Timeout: time.Second, RetryBase: time.Millisecond}, nil, log)

	sessions := memory.NewSessionRepository(log)
	notifier := &recordingNotifier{}
	auth := &fakeAuthProvider{grant: &models.TokenGrant{AccessToken: "access", ExpiresIn: 3600, RefreshToken: "refresh"}}

	cfg := &util.SessionConfig{
		Secret:      []byte(testSecret),
		TTL:         time.Hour,
		AdminEmails: []string{"admin@example.com"},
	}
	svc := NewSessionService(cfg, sessions, memory.NewUserRepository(), tokens, auth, fakeProfiles{}, notifier, log)

	return &sessionFixture{svc: svc, sessions: sessions, provider: provider, notifier: notifier}
}

func TestSessionService_LoginAuthenticateLogout(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	state, redirect, err := f.svc.BeginLogin()
	require.NoError(t, err)
	assert.Len(t, state, 2*util.RawStateLength)
	assert.True(t, strings.HasSuffix(redirect, "state="+state))

	session, token, err := f.svc.CompleteLogin(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access", session.Credential.AccessToken)
	assert.Equal(t, "refresh", session.Credential.RefreshToken)
	assert.Equal(t, models.CredentialActive, session.Credential.Status)

	got, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	info := f.svc.SessionInfo(got)
	assert.Equal(t, "valid", info.TokenStatus)
	assert.Equal(t, "spotify-user", info.User.ID)
	assert.True(t, info.User.IsAdmin)

	require.NoError(t, f.svc.Logout(ctx, token))
	_, err = f.svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// idempotent
	require.NoError(t, f.svc.Logout(ctx, token))
	require.NoError(t, f.svc.Logout(ctx, ""))
	require.NoError(t, f.svc.Logout(ctx, "not-a-token"))

	assert.Equal(t, []string{EventLogin, EventLogout}, f.notifier.events)
}

func TestSessionService_CompleteLoginFailure(t *testing.T) {
	f := newSessionFixture(t)

	_, _, err := f.svc.CompleteLogin(context.Background(), "bad-code")
	require.ErrorIs(t, err, spotify.ErrTokenRejected)
	assert.Empty(t, f.notifier.events)
}

func TestSessionService_AuthenticateRejectsBadTokens(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, token, err := f.svc.CompleteLogin(ctx, "good-code")
	require.NoError(t, err)

	other := newSessionFixture(t)
	other.svc.secret = []byte("ffffffffffffffffffffffffffffffff")

	tests := []struct {
		name  string
		svc   *SessionService
		token string
	}{
		{name: "empty", svc: f.svc, token: ""},
		{name: "garbage", svc: f.svc, token: "abc"},
		{name: "tampered", svc: f.svc, token: token + "x"},
		{name: "foreign secret", svc: other.svc, token: token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Authenticate(ctx, tt.token)
			require.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestSessionService_AuthenticateExpiredCookie(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, token, err := f.svc.CompleteLogin(ctx, "good-code")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionService_ResolveCredential(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh credential is untouched", func(t *testing.T) {
		f := newSessionFixture(t)
		session, _, err := f.svc.CompleteLogin(ctx, "good-code")
		require.NoError(t, err)

		require.NoError(t, f.svc.ResolveCredential(ctx, session))
		assert.Equal(t, "access", session.Credential.AccessToken)
		assert.Zero(t, f.provider.calls.Load())
	})

	t.Run("expired credential is refreshed and persisted", func(t *testing.T) {
		f := newSessionFixture(t)
		session, _, err := f.svc.CompleteLogin(ctx, "good-code")
		require.NoError(t, err)

		session = expireStored(t, f, session.ID)
		require.NoError(t, f.svc.ResolveCredential(ctx, session))
		assert.Equal(t, "refreshed-access", session.Credential.AccessToken)

		stored, err := f.sessions.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "refreshed-access", stored.Credential.AccessToken)
		assert.Equal(t, "refresh", stored.Credential.RefreshToken)
	})

	t.Run("failed refresh is sticky", func(t *testing.T) {
		f := newSessionFixture(t, grantErr(errors.New("invalid_grant")))
		session, _, err := f.svc.CompleteLogin(ctx, "good-code")
		require.NoError(t, err)

		session = expireStored(t, f, session.ID)
		require.ErrorIs(t, f.svc.ResolveCredential(ctx, session), ErrRefreshFailed)

		stored, err := f.sessions.GetSession(ctx, session.ID)
		require.NoError(t, err)
		require.ErrorIs(t, f.svc.ResolveCredential(ctx, stored), ErrRefreshFailed)
		assert.EqualValues(t, 1, f.provider.calls.Load())

		info := f.svc.SessionInfo(stored)
		assert.Equal(t, models.RefreshAccessTokenError, info.TokenStatus)
		assert.Equal(t, []string{EventLogin, EventRefreshFailed}, f.notifier.events)
	})

	t.Run("deleted session", func(t *testing.T) {
		f := newSessionFixture(t)
		session, _, err := f.svc.CompleteLogin(ctx, "good-code")
		require.NoError(t, err)
		require.NoError(t, f.sessions.DeleteSession(ctx, session.ID))

		session.Credential.AccessTokenExpiresAt = time.Now().Add(-time.Minute)
		require.ErrorIs(t, f.svc.ResolveCredential(ctx, session), ErrUnauthenticated)
	})
}

func TestSessionService_ResolveCredential_StaleCopies(t *testing.T) {
	ctx := context.Background()
	rotating := []func() (*models.TokenGrant, error){
		grantOK("rotated-access", "rotated-refresh"),
		grantErr(fmt.Errorf("%w: invalid_grant", spotify.ErrTokenRejected)),
	}

	assertRotated := func(t *testing.T, f *sessionFixture, id string) {
		t.Helper()
		stored, err := f.sessions.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "rotated-access", stored.Credential.AccessToken)
		assert.Equal(t, "rotated-refresh", stored.Credential.RefreshToken)
		assert.Equal(t, models.CredentialActive, stored.Credential.Status)
		assert.Equal(t, []string{EventLogin}, f.notifier.events)
	}

	t.Run("second request adopts the stored refresh", func(t *testing.T) {
		f := newSessionFixture(t, rotating...)
		session, _, err := f.svc.CompleteLogin(ctx, "good-code")
		require.NoError(t, err)

		first := expireStored(t, f, session.ID)
		second, err := f.sessions.GetSession(ctx, session.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.ResolveCredential(ctx, first))
		require.NoError(t, f.svc.ResolveCredential(ctx, second))

		assert.Equal(t, "rotated-access", second.Credential.AccessToken)
		assert.EqualValues(t, 1, f.provider.calls.Load())
		assertRotated(t, f, session.ID)
	})

	t.Run("failed refresh does not overwrite a newer credential", func(t *testing.T) {
		f := newSessionFixture(t, rotating...)
		session, _, err := f.svc.CompleteLogin(ctx, "good-code")
		require.NoError(t, err)

		first := expireStored(t, f, session.ID)
		second, err := f.sessions.GetSession(ctx, session.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.ResolveCredential(ctx, first))

		// the second request read the record before the first one wrote it
		f.svc.sessions = &staleReadStore{InMemorySessionManager: f.sessions, stale: second}
		require.NoError(t, f.svc.ResolveCredential(ctx, second))

		assert.Equal(t, "rotated-access", second.Credential.AccessToken)
		assert.EqualValues(t, 2, f.provider.calls.Load())
		assertRotated(t, f, session.ID)
	})
}

// staleReadStore serves one outdated copy before reading through.
type staleReadStore struct {
	*memory.InMemorySessionManager
	stale *models.Session
}

func (s *staleReadStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if s.stale != nil {
		copied := *s.stale
		s.stale = nil
		return &copied, nil
	}
	return s.InMemorySessionManager.GetSession(ctx, id)
}

func expireStored(t *testing.T, f *sessionFixture, id string) *models.Session {
	t.Helper()
	ctx := context.Background()

	stored, err := f.sessions.GetSession(ctx, id)
	require.NoError(t, err)
	expired := stored.Credential
	expired.AccessTokenExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, f.sessions.SwapCredential(ctx, id, stored.Credential, expired))

	stored, err = f.sessions.GetSession(ctx, id)
	require.NoError(t, err)
	return stored
}

func TestSessionService_Admin(t *testing.T) {
	f := newSessionFixture(t)

	admin := &models.Session{Identity: models.Identity{Email: "ADMIN@example.com"}}
	user := &models.Session{Identity: models.Identity{Email: "someone@example.com"}}

	require.NoError(t, f.svc.RequireAdmin(admin))
	require.ErrorIs(t, f.svc.RequireAdmin(user), ErrForbidden)
	assert.False(t, f.svc.IsAdmin(""))
}

func TestSessionService_AdminSessionInfo(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, _, err := f.svc.CompleteLogin(ctx, "good-code")
	require.NoError(t, err)

	info, err := f.svc.AdminSessionInfo(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, session.ID, info.SessionID)
	assert.Equal(t, "fresh", info.State)
	require.NotNil(t, info.Directory)
	assert.Equal(t, "spotify-user", info.Directory.SpotifyID)

	session.Identity.SubjectID = "unknown"
	info, err = f.svc.AdminSessionInfo(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, info.Directory)
}

func TestCheckState(t *testing.T) {
	assert.NoError(t, CheckState("abc", "abc"))
	assert.ErrorIs(t, CheckState("abc", "abd"), ErrInvalidState)
	assert.ErrorIs(t, CheckState("abc", "ab"), ErrInvalidState)
	assert.ErrorIs(t, CheckState("", ""), ErrInvalidState)
}
