package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/observability"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

const problemContentType = "application/problem+json"

// MiddlewareConfig bundles settings for the global middleware chain.
type MiddlewareConfig struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Timeout bounds each request's context. Zero disables it.
	Timeout time.Duration
	// RateLimitPerMinute caps requests per client IP in a fixed one-minute window. Zero disables it.
	RateLimitPerMinute int
	// ExposeInternalErrors includes the detail of 5xx failures in responses.
	ExposeInternalErrors bool
}

// ProblemDetails is the error body returned for every failed request.
type ProblemDetails struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance"`
	Code     string         `json:"code"`
	TraceID  string         `json:"traceId,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, cfg.Metrics))
	app.Use(errorHandlingMiddleware(logger, cfg.Metrics, cfg.ExposeInternalErrors))
	if cfg.RateLimitPerMinute > 0 {
		app.Use(rateLimitMiddleware(cfg.RateLimitPerMinute))
	}
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func rateLimitMiddleware(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return isOperationalPath(c.Path())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

func isOperationalPath(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, exposeInternal bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				problem := toProblem(c, err, exposeInternal)
				metrics.RecordError(c.Route().Path, c.Method(), problem.Code)
				if problem.Status >= http.StatusInternalServerError {
					logger.Error("request failed",
						zap.String("path", c.Path()),
						zap.String("trace_id", problem.TraceID),
						zap.Error(err))
				}
				c.Status(problem.Status)
				if jsonErr := c.JSON(problem); jsonErr != nil {
					logger.Error("write problem response", zap.Error(jsonErr))
				}
				c.Set(fiber.HeaderContentType, problemContentType)
				err = nil
			}
		}()
		return c.Next()
	}
}

func toProblem(c *fiber.Ctx, err error, exposeInternal bool) ProblemDetails {
	var domainErr *apperrors.DomainError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &domainErr):
	case errors.As(err, &fiberErr):
		domainErr = apperrors.NewDomainError(apperrors.CodeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	default:
		domainErr = apperrors.ToDomainError(err)
	}

	detail := domainErr.Message
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		if exposeInternal {
			detail = domainErr.Error()
		} else {
			detail = "An unexpected error occurred."
		}
	}

	traceID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	return ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(domainErr.HTTPStatus),
		Status:   domainErr.HTTPStatus,
		Detail:   detail,
		Instance: c.Path(),
		Code:     domainErr.Code,
		TraceID:  traceID,
		Details:  domainErr.Details,
	}
}
