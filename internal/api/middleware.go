package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/service"
)

const (
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"

	unknownClient = "unknown"
)

// ClientIdentity picks the client address from proxy headers.
// The headers are client controlled unless a trusted proxy overwrites them.
func ClientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return unknownClient
}

// AdmissionMiddleware rejects requests over the route's budget with 429 and Retry-After.
func AdmissionMiddleware(ac *service.AdmissionController, route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := ac.Admit(c.Request().Context(), route, ClientIdentity(c.Request()))

			h := c.Response().Header()
			h.Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
			h.Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
			h.Set(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				h.Set(HeaderRetryAfter, strconv.Itoa(decision.RetryAfterSeconds))
				return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
					Reason:     "rate limit exceeded",
					RetryAfter: decision.RetryAfterSeconds,
				})
			}

			return next(c)
		}
	}
}

func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-XSS-Protection", "1; mode=block")
			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"client", ClientIdentity(c.Request()),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}

func GetRecoverConfig(a *API) echomiddleware.RecoverConfig {
	return echomiddleware.RecoverConfig{
		StackSize:         4 << 10,
		DisablePrintStack: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			a.log.Errorw("panic recovered", "uri", c.Request().RequestURI, "error", err, "stack", string(stack))
			return err
		},
	}
}
