package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/service"
	"github.com/rryowa/krychek/internal/spotify"
	"github.com/rryowa/krychek/internal/util"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, reason := classify(err)
		switch {
		case status >= http.StatusInternalServerError:
			log.Errorw("request failed", "error", err, "uri", c.Request().RequestURI, "status", status)
		case status == http.StatusUnauthorized && errors.Is(err, service.ErrRefreshFailed):
			log.Warnw("session credential unusable", "uri", c.Request().RequestURI)
		}

		if err := c.JSON(status, models.ErrorResponse{Reason: reason}); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

func classify(err error) (int, string) {
	if errors.Is(err, service.ErrRefreshFailed) {
		return http.StatusUnauthorized, service.ErrRefreshFailed.Error()
	}
	if errors.Is(err, service.ErrUnauthenticated) {
		return http.StatusUnauthorized, service.ErrUnauthenticated.Error()
	}
	if errors.Is(err, service.ErrForbidden) {
		return http.StatusForbidden, service.ErrForbidden.Error()
	}

	var apiErr *spotify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr.Message
	}

	var respErr util.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status, respErr.Msg
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, "internal server error"
		}
		return he.Code, fmt.Sprint(he.Message)
	}

	if errors.Is(err, spotify.ErrTemporaryFailure) {
		return http.StatusBadGateway, "upstream unavailable"
	}

	return http.StatusInternalServerError, "internal server error"
}
