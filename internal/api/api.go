package api

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/controller"
	"github.com/rryowa/krychek/internal/metrics"
	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/service"
	"github.com/rryowa/krychek/internal/util"
)

// admissionRoutes maps operations to their admission keys.
//
//nolint:gochecknoglobals // fixed route table
var admissionRoutes = map[string]string{
	controller.OpGetNowPlaying:     models.SpotifyRouteNow,
	controller.OpGetRecentlyPlayed: models.SpotifyRouteRecent,
	controller.OpGetTop:            models.SpotifyRouteTop,
	controller.OpLogin:             models.AuthRouteLogin,
	controller.OpCallback:          models.AuthRouteCallback,
}

type API struct {
	server          *echo.Echo
	controller      *controller.Controller
	admission       *service.AdmissionController
	gatherer        prometheus.Gatherer
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanups        []func()
}

func NewAPI(
	c *controller.Controller,
	admission *service.AdmissionController,
	gatherer prometheus.Gatherer,
	l *zap.SugaredLogger,
	sc *util.ServerConfig,
	cleanups []func(),
) *API {
	e := echo.New()
	e.HideBanner = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	return &API{
		server:          e,
		controller:      c,
		admission:       admission,
		gatherer:        gatherer,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanups:        cleanups,
	}
}

// Setup installs middleware and routes. It is split from Run so tests can drive the handler.
func (a *API) Setup() error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return err
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.RecoverWithConfig(GetRecoverConfig(a)))
	a.server.Use(SecurityHeaders())
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))

	a.server.GET("/metrics", echo.WrapHandler(metrics.Handler(a.gatherer)))

	controller.RegisterHandlers(a.server, a.controller, a.routeMiddleware(swagger))
	return nil
}

// routeMiddleware orders each route's chain: admission, then request validation.
func (a *API) routeMiddleware(swagger *openapi3.T) controller.RouteMiddleware {
	validator := middleware.OapiRequestValidator(swagger)

	return func(operationID string) []echo.MiddlewareFunc {
		var chain []echo.MiddlewareFunc
		if route, ok := admissionRoutes[operationID]; ok {
			chain = append(chain, AdmissionMiddleware(a.admission, route))
		}
		return append(chain, validator)
	}
}

// Handler exposes the configured router.
func (a *API) Handler() http.Handler {
	return a.server
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Setup(); err != nil {
		a.log.Fatalf("Failed to load OpenAPI document: %v", err)
	}

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("shutdown: %v", err)
	} else {
		a.log.Info("server shutdown completed")
	}

	for _, cleanup := range a.cleanups {
		cleanup()
	}
}
