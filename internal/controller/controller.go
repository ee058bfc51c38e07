package controller

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/service"
	"github.com/rryowa/krychek/internal/spotify"
	"github.com/rryowa/krychek/internal/util"
)

const (
	defaultUsersLimit = 20
	stateCookiePath   = "/api/auth"
)

// ListeningData reads a user's listening history from the provider.
type ListeningData interface {
	GetTopTracks(ctx context.Context, accessToken string, timeRange models.TimeRange, limit int) (*models.TopTracksResponse, error)
	GetTopArtists(ctx context.Context, accessToken string, timeRange models.TimeRange, limit int) (*models.TopArtistsResponse, error)
	GetRecentlyPlayed(ctx context.Context, accessToken string, limit int) (*models.RecentlyPlayedResponse, error)
	GetCurrentlyPlaying(ctx context.Context, accessToken string) (*models.CurrentlyPlayingResponse, error)
}

type Controller struct {
	zapLogger      *zap.SugaredLogger
	sessionService *service.SessionService
	listening      ListeningData
	cfg            *util.SessionConfig
}

func NewController(
	logger *zap.SugaredLogger,
	sessionService *service.SessionService,
	listening ListeningData,
	cfg *util.SessionConfig,
) *Controller {
	return &Controller{
		zapLogger:      logger,
		sessionService: sessionService,
		listening:      listening,
		cfg:            cfg,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (GET /api/spotify/now).
func (c *Controller) GetNowPlaying(ctx echo.Context) error {
	session, err := c.usableSession(ctx)
	if err != nil {
		return err
	}

	playing, err := c.listening.GetCurrentlyPlaying(ctx.Request().Context(), session.Credential.AccessToken)
	if err != nil {
		return err
	}
	if playing == nil {
		return ctx.JSON(http.StatusOK, models.NothingPlaying{IsPlaying: false})
	}
	return ctx.JSON(http.StatusOK, playing)
}

// (GET /api/spotify/recent).
func (c *Controller) GetRecentlyPlayed(ctx echo.Context, params GetRecentlyPlayedParams) error {
	session, err := c.usableSession(ctx)
	if err != nil {
		return err
	}

	recent, err := c.listening.GetRecentlyPlayed(ctx.Request().Context(), session.Credential.AccessToken, ClampLimit(params.Limit))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, recent)
}

// (GET /api/spotify/top).
func (c *Controller) GetTop(ctx echo.Context, params GetTopParams) error {
	itemType := models.TopTracks
	if params.Type != nil {
		itemType = *params.Type
	}
	timeRange := models.TimeRangeMedium
	if params.TimeRange != nil {
		timeRange = *params.TimeRange
	}
	if itemType != models.TopTracks && itemType != models.TopArtists {
		return util.BadRequest("invalid type %q", itemType)
	}
	if !timeRange.Valid() {
		return util.BadRequest("invalid time_range %q", timeRange)
	}

	session, err := c.usableSession(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	token := session.Credential.AccessToken
	limit := ClampLimit(params.Limit)

	if itemType == models.TopArtists {
		artists, err := c.listening.GetTopArtists(reqCtx, token, timeRange, limit)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, artists)
	}

	tracks, err := c.listening.GetTopTracks(reqCtx, token, timeRange, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tracks)
}

// (GET /api/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	state, redirectURL, err := c.sessionService.BeginLogin()
	if err != nil {
		return err
	}

	ctx.SetCookie(c.stateCookie(state, int(c.cfg.StateTTL.Seconds())))
	return ctx.Redirect(http.StatusFound, redirectURL)
}

// (GET /api/auth/callback).
func (c *Controller) Callback(ctx echo.Context, params CallbackParams) error {
	expected := ""
	if cookie, err := ctx.Cookie(c.cfg.StateCookieName); err == nil {
		expected = cookie.Value
	}
	ctx.SetCookie(c.stateCookie("", -1))

	if params.Error != nil && *params.Error != "" {
		c.zapLogger.Infow("authorization declined", "error", *params.Error)
		return ctx.Redirect(http.StatusFound, c.postLoginURL(*params.Error))
	}

	if err := service.CheckState(expected, deref(params.State)); err != nil {
		c.zapLogger.Warnw("oauth state mismatch", "ip", ctx.RealIP())
		return ctx.Redirect(http.StatusFound, c.postLoginURL("state_mismatch"))
	}

	code := deref(params.Code)
	if code == "" {
		return ctx.Redirect(http.StatusFound, c.postLoginURL("missing_code"))
	}

	session, token, err := c.sessionService.CompleteLogin(ctx.Request().Context(), code)
	if err != nil {
		c.zapLogger.Errorw("failed to complete login", "error", err)
		return ctx.Redirect(http.StatusFound, c.postLoginURL("login_failed"))
	}

	ctx.SetCookie(c.sessionCookie(token, session.ExpiresAt))
	return ctx.Redirect(http.StatusFound, c.cfg.PostLoginRedirect)
}

// (POST /api/auth/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	token := ""
	if cookie, err := ctx.Cookie(c.cfg.CookieName); err == nil {
		token = cookie.Value
	}

	if err := c.sessionService.Logout(ctx.Request().Context(), token); err != nil {
		return err
	}

	expired := c.sessionCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	ctx.SetCookie(expired)
	return ctx.NoContent(http.StatusNoContent)
}

// (GET /api/auth/session).
func (c *Controller) GetSession(ctx echo.Context) error {
	session, err := c.currentSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c.sessionService.SessionInfo(session))
}

// (GET /api/admin/session).
func (c *Controller) GetAdminSession(ctx echo.Context) error {
	session, err := c.adminSession(ctx)
	if err != nil {
		return err
	}
	info, err := c.sessionService.AdminSessionInfo(ctx.Request().Context(), session)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, info)
}

// (GET /api/admin/users).
func (c *Controller) ListUsers(ctx echo.Context, params ListUsersParams) error {
	if _, err := c.adminSession(ctx); err != nil {
		return err
	}

	limit := defaultUsersLimit
	if params.Limit != nil {
		limit = *params.Limit
	}

	users, err := c.sessionService.ListUsers(ctx.Request().Context(), limit)
	if err != nil {
		return err
	}
	if users == nil {
		users = []models.User{}
	}
	return ctx.JSON(http.StatusOK, models.UsersResponse{Items: users})
}

// ClampLimit applies the default page size and bounds it to what the provider accepts.
func ClampLimit(limit *int) int {
	if limit == nil {
		return spotify.DefaultLimit
	}
	return max(1, min(*limit, spotify.MaxLimit))
}

// currentSession authenticates the request from its session cookie.
func (c *Controller) currentSession(ctx echo.Context) (*models.Session, error) {
	if s, ok := ctx.Get(models.MwSessionKey).(*models.Session); ok {
		return s, nil
	}

	cookie, err := ctx.Cookie(c.cfg.CookieName)
	if err != nil {
		return nil, service.ErrUnauthenticated
	}

	session, err := c.sessionService.Authenticate(ctx.Request().Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	ctx.Set(models.MwSessionKey, session)
	return session, nil
}

// usableSession authenticates the request and resolves its credential before an upstream call.
func (c *Controller) usableSession(ctx echo.Context) (*models.Session, error) {
	session, err := c.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.sessionService.ResolveCredential(ctx.Request().Context(), session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Controller) adminSession(ctx echo.Context) (*models.Session, error) {
	session, err := c.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.sessionService.RequireAdmin(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Controller) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(c.sessionService.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   c.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *Controller) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.StateCookieName,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *Controller) postLoginURL(errCode string) string {
	u, err := url.Parse(c.cfg.PostLoginRedirect)
	if err != nil {
		return c.cfg.PostLoginRedirect
	}
	q := u.Query()
	q.Set("error", errCode)
	u.RawQuery = q.Encode()
	return u.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
