package util

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultSessionTTL        = 30 * 24 * time.Hour
	defaultSessionCookieName = "krychek_session"
	defaultStateCookieName   = "krychek_oauth_state"
	defaultStateTTL          = 10 * time.Minute
	defaultPostLoginRedirect = "/"

	defaultSpotifyAuthURL    = "https://accounts.spotify.com/authorize"
	defaultSpotifyTokenURL   = "https://accounts.spotify.com/api/token"
	defaultSpotifyAPIBaseURL = "https://api.spotify.com/v1"
	defaultSpotifyScopes     = "user-top-read user-read-recently-played user-read-currently-playing user-read-email user-read-private"
	defaultSpotifyTimeout    = 10 * time.Second
	defaultSpotifyCacheTTL   = 60 * time.Second
	defaultSpotifyCacheSize  = 1024
	defaultSpotifyRPS        = 10
	defaultSpotifyBurst      = 10

	defaultRefreshTimeout    = 10 * time.Second
	defaultRefreshMaxRetries = 2
	defaultRefreshRetryBase  = 200 * time.Millisecond

	defaultRateLimitMax       = 30
	defaultRateLimitWindow    = 60 * time.Second
	defaultNowRateLimitMax    = 6
	defaultNowRateLimitWindow = 10 * time.Second
	defaultRateSweepInterval  = 60 * time.Second

	TokenPartsExpected = 3
	JWTLeeWay          = 5 * time.Second
	RawStateLength     = 32
)

type ServerConfig struct {
	ServerAddr      string        `validate:"required"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	IdleTimeout     time.Duration `validate:"gt=0"`
	GracefulTimeout time.Duration `validate:"gt=0"`
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// SessionConfig drives the session cookie and the OAuth state cookie.
type SessionConfig struct {
	Secret            []byte        `validate:"required,min=32"`
	TTL               time.Duration `validate:"gt=0"`
	CookieName        string        `validate:"required"`
	StateCookieName   string        `validate:"required"`
	StateTTL          time.Duration `validate:"gt=0"`
	SecureCookies     bool
	PostLoginRedirect string `validate:"required"`
	AdminEmails       []string
}

func NewSessionConfig() *SessionConfig {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Fatal("SESSION_SECRET is not set")
	}

	redirect := os.Getenv("POST_LOGIN_REDIRECT")
	if redirect == "" {
		redirect = defaultPostLoginRedirect
	}

	return &SessionConfig{
		Secret:            []byte(secret),
		TTL:               parseDurationOrDefault("SESSION_TTL", defaultSessionTTL),
		CookieName:        stringOrDefault("SESSION_COOKIE_NAME", defaultSessionCookieName),
		StateCookieName:   stringOrDefault("STATE_COOKIE_NAME", defaultStateCookieName),
		StateTTL:          parseDurationOrDefault("STATE_TTL", defaultStateTTL),
		SecureCookies:     parseBoolOrDefault("SECURE_COOKIES", true),
		PostLoginRedirect: redirect,
		AdminEmails:       ParseAdminEmails(os.Getenv("ADMIN_EMAILS")),
	}
}

type SpotifyConfig struct {
	ClientID     string        `validate:"required"`
	ClientSecret string        `validate:"required"`
	RedirectURI  string        `validate:"required,url"`
	AuthURL      string        `validate:"required,url"`
	TokenURL     string        `validate:"required,url"`
	APIBaseURL   string        `validate:"required,url"`
	Scopes       string        `validate:"required"`
	Timeout      time.Duration `validate:"gt=0"`
	CacheTTL     time.Duration `validate:"gte=0"`
	CacheSize    int           `validate:"gt=0"`
	RPS          int           `validate:"gt=0"`
	Burst        int           `validate:"gt=0"`
}

func NewSpotifyConfig() *SpotifyConfig {
	return &SpotifyConfig{
		ClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("SPOTIFY_REDIRECT_URI"),
		AuthURL:      stringOrDefault("SPOTIFY_AUTH_URL", defaultSpotifyAuthURL),
		TokenURL:     stringOrDefault("SPOTIFY_TOKEN_URL", defaultSpotifyTokenURL),
		APIBaseURL:   stringOrDefault("SPOTIFY_API_BASE_URL", defaultSpotifyAPIBaseURL),
		Scopes:       stringOrDefault("SPOTIFY_SCOPES", defaultSpotifyScopes),
		Timeout:      parseDurationOrDefault("SPOTIFY_TIMEOUT", defaultSpotifyTimeout),
		CacheTTL:     parseDurationOrDefault("SPOTIFY_CACHE_TTL", defaultSpotifyCacheTTL),
		CacheSize:    parseIntOrDefault("SPOTIFY_CACHE_SIZE", defaultSpotifyCacheSize),
		RPS:          parseIntOrDefault("SPOTIFY_RPS", defaultSpotifyRPS),
		Burst:        parseIntOrDefault("SPOTIFY_BURST", defaultSpotifyBurst),
	}
}

type RefreshConfig struct {
	Timeout    time.Duration `validate:"gt=0"`
	MaxRetries int           `validate:"gte=0"`
	RetryBase  time.Duration `validate:"gt=0"`
}

func NewRefreshConfig() *RefreshConfig {
	return &RefreshConfig{
		Timeout:    parseDurationOrDefault("REFRESH_TIMEOUT", defaultRefreshTimeout),
		MaxRetries: parseIntOrDefault("REFRESH_MAX_RETRIES", defaultRefreshMaxRetries),
		RetryBase:  parseDurationOrDefault("REFRESH_RETRY_BASE", defaultRefreshRetryBase),
	}
}

type RateLimitPolicyConfig struct {
	MaxRequests int           `validate:"gt=0"`
	Window      time.Duration `validate:"gt=0"`
}

type RateLimiterConfig struct {
	Default       RateLimitPolicyConfig
	NowPlaying    RateLimitPolicyConfig
	SweepInterval time.Duration `validate:"gt=0"`
}

func NewRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Default: RateLimitPolicyConfig{
			MaxRequests: parseIntOrDefault("RATE_LIMIT_MAX", defaultRateLimitMax),
			Window:      parseDurationOrDefault("RATE_LIMIT_WINDOW", defaultRateLimitWindow),
		},
		NowPlaying: RateLimitPolicyConfig{
			MaxRequests: parseIntOrDefault("RATE_LIMIT_NOW_MAX", defaultNowRateLimitMax),
			Window:      parseDurationOrDefault("RATE_LIMIT_NOW_WINDOW", defaultNowRateLimitWindow),
		},
		SweepInterval: parseDurationOrDefault("RATE_LIMIT_SWEEP_INTERVAL", defaultRateSweepInterval),
	}
}

func GetWebhookURL() string {
	return os.Getenv("WEBHOOK_URL")
}

// ParseAdminEmails splits a comma separated list into trimmed lower-case addresses.
func ParseAdminEmails(raw string) []string {
	var emails []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}

func stringOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid %s: %s, using default %d", varName, v, def)
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid %s: %s, using default %t", varName, v, def)
	}
	return def
}
