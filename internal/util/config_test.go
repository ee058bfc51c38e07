package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdminEmails(t *testing.T) {
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, ParseAdminEmails(" A@example.com, ,b@Example.com "))
	assert.Empty(t, ParseAdminEmails(""))
}

func TestNewRateLimiterConfig_Defaults(t *testing.T) {
	cfg := NewRateLimiterConfig()

	assert.Equal(t, 30, cfg.Default.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Default.Window)
	assert.Equal(t, 6, cfg.NowPlaying.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.NowPlaying.Window)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	require.NoError(t, ValidateConfig(cfg))
}

func TestNewRateLimiterConfig_FromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_NOW_MAX", "12")
	t.Setenv("RATE_LIMIT_NOW_WINDOW", "20s")
	t.Setenv("RATE_LIMIT_MAX", "not-a-number")

	cfg := NewRateLimiterConfig()

	assert.Equal(t, 12, cfg.NowPlaying.MaxRequests)
	assert.Equal(t, 20*time.Second, cfg.NowPlaying.Window)
	assert.Equal(t, defaultRateLimitMax, cfg.Default.MaxRequests)
}

func TestSpotifyConfig_Validation(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	cfg := NewSpotifyConfig()
	require.Error(t, ValidateConfig(cfg))

	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SPOTIFY_REDIRECT_URI", "http://localhost:8080/api/auth/callback")
	cfg = NewSpotifyConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, defaultSpotifyTokenURL, cfg.TokenURL)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
}

func TestNewDBConfig_Optional(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	assert.Nil(t, NewDBConfig())

	t.Setenv("DATABASE_URL", "postgres://localhost/krychek")
	assert.Equal(t, "postgres://localhost/krychek", NewDBConfig().DSN)
}

func TestNewRefreshConfig_MaxRetries(t *testing.T) {
	t.Setenv("REFRESH_MAX_RETRIES", "")
	cfg := NewRefreshConfig()
	assert.Equal(t, defaultRefreshMaxRetries, cfg.MaxRetries)
	require.NoError(t, ValidateConfig(cfg))

	t.Setenv("REFRESH_MAX_RETRIES", "0")
	require.NoError(t, ValidateConfig(NewRefreshConfig()))

	t.Setenv("REFRESH_MAX_RETRIES", "-1")
	cfg = NewRefreshConfig()
	assert.Equal(t, -1, cfg.MaxRetries)
	require.Error(t, ValidateConfig(cfg))
}
