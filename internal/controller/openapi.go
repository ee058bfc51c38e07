package controller

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"github.com/rryowa/krychek/internal/models"
)

//go:embed openapi.yaml
var openAPIDocument []byte

const (
	OpCheckServer       = "checkServer"
	OpGetNowPlaying     = "getNowPlaying"
	OpGetRecentlyPlayed = "getRecentlyPlayed"
	OpGetTop            = "getTop"
	OpLogin             = "login"
	OpCallback          = "callback"
	OpLogout            = "logout"
	OpGetSession        = "getSession"
	OpGetAdminSession   = "getAdminSession"
	OpListUsers         = "listUsers"
)

// GetSwagger parses the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := swagger.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return swagger, nil
}

type GetRecentlyPlayedParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

type GetTopParams struct {
	Type      *models.TopItemType `form:"type,omitempty" json:"type,omitempty"`
	TimeRange *models.TimeRange   `form:"time_range,omitempty" json:"time_range,omitempty"`
	Limit     *int                `form:"limit,omitempty" json:"limit,omitempty"`
}

type CallbackParams struct {
	Code  *string `form:"code,omitempty" json:"code,omitempty"`
	State *string `form:"state,omitempty" json:"state,omitempty"`
	Error *string `form:"error,omitempty" json:"error,omitempty"`
}

type ListUsersParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface is implemented by Controller.
type ServerInterface interface {
	// (GET /api/ping)
	CheckServer(ctx echo.Context) error
	// (GET /api/spotify/now)
	GetNowPlaying(ctx echo.Context) error
	// (GET /api/spotify/recent)
	GetRecentlyPlayed(ctx echo.Context, params GetRecentlyPlayedParams) error
	// (GET /api/spotify/top)
	GetTop(ctx echo.Context, params GetTopParams) error
	// (GET /api/auth/login)
	Login(ctx echo.Context) error
	// (GET /api/auth/callback)
	Callback(ctx echo.Context, params CallbackParams) error
	// (POST /api/auth/logout)
	Logout(ctx echo.Context) error
	// (GET /api/auth/session)
	GetSession(ctx echo.Context) error
	// (GET /api/admin/session)
	GetAdminSession(ctx echo.Context) error
	// (GET /api/admin/users)
	ListUsers(ctx echo.Context, params ListUsersParams) error
}

// ServerInterfaceWrapper converts echo contexts to typed parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) CheckServer(ctx echo.Context) error {
	return w.Handler.CheckServer(ctx)
}

func (w *ServerInterfaceWrapper) GetNowPlaying(ctx echo.Context) error {
	return w.Handler.GetNowPlaying(ctx)
}

func (w *ServerInterfaceWrapper) GetRecentlyPlayed(ctx echo.Context) error {
	var params GetRecentlyPlayedParams

	if err := bindQuery(ctx, "limit", &params.Limit); err != nil {
		return err
	}

	return w.Handler.GetRecentlyPlayed(ctx, params)
}

func (w *ServerInterfaceWrapper) GetTop(ctx echo.Context) error {
	var params GetTopParams

	if err := bindQuery(ctx, "type", &params.Type); err != nil {
		return err
	}
	if err := bindQuery(ctx, "time_range", &params.TimeRange); err != nil {
		return err
	}
	if err := bindQuery(ctx, "limit", &params.Limit); err != nil {
		return err
	}

	return w.Handler.GetTop(ctx, params)
}

func (w *ServerInterfaceWrapper) Login(ctx echo.Context) error {
	return w.Handler.Login(ctx)
}

func (w *ServerInterfaceWrapper) Callback(ctx echo.Context) error {
	var params CallbackParams

	if err := bindQuery(ctx, "code", &params.Code); err != nil {
		return err
	}
	if err := bindQuery(ctx, "state", &params.State); err != nil {
		return err
	}
	if err := bindQuery(ctx, "error", &params.Error); err != nil {
		return err
	}

	return w.Handler.Callback(ctx, params)
}

func (w *ServerInterfaceWrapper) Logout(ctx echo.Context) error {
	return w.Handler.Logout(ctx)
}

func (w *ServerInterfaceWrapper) GetSession(ctx echo.Context) error {
	return w.Handler.GetSession(ctx)
}

func (w *ServerInterfaceWrapper) GetAdminSession(ctx echo.Context) error {
	return w.Handler.GetAdminSession(ctx)
}

func (w *ServerInterfaceWrapper) ListUsers(ctx echo.Context) error {
	var params ListUsersParams

	if err := bindQuery(ctx, "limit", &params.Limit); err != nil {
		return err
	}

	return w.Handler.ListUsers(ctx, params)
}

func bindQuery(ctx echo.Context, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, ctx.QueryParams(), dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return nil
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RouteMiddleware returns the middleware chain for an operation, outermost first.
type RouteMiddleware func(operationID string) []echo.MiddlewareFunc

func RegisterHandlers(router EchoRouter, si ServerInterface, mw RouteMiddleware) {
	if mw == nil {
		mw = func(string) []echo.MiddlewareFunc { return nil }
	}
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.GET("/api/ping", wrapper.CheckServer, mw(OpCheckServer)...)
	router.GET("/api/spotify/now", wrapper.GetNowPlaying, mw(OpGetNowPlaying)...)
	router.GET("/api/spotify/recent", wrapper.GetRecentlyPlayed, mw(OpGetRecentlyPlayed)...)
	router.GET("/api/spotify/top", wrapper.GetTop, mw(OpGetTop)...)
	router.GET("/api/auth/login", wrapper.Login, mw(OpLogin)...)
	router.GET("/api/auth/callback", wrapper.Callback, mw(OpCallback)...)
	router.POST("/api/auth/logout", wrapper.Logout, mw(OpLogout)...)
	router.GET("/api/auth/session", wrapper.GetSession, mw(OpGetSession)...)
	router.GET("/api/admin/session", wrapper.GetAdminSession, mw(OpGetAdminSession)...)
	router.GET("/api/admin/users", wrapper.ListUsers, mw(OpListUsers)...)
}
