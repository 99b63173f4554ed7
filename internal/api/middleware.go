package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dailyplan/internal/apperr"
	"dailyplan/internal/billing"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

const (
	tracerName = "dailyplan/api"
	userKey    = "user"
)

// observeRequests opens a span per request and logs one line when the
// response is written. Handler errors are rendered here so the recorded
// status is the one the client sees.
func observeRequests(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			route := c.Path()

			ctx, span := otel.Tracer(tracerName).Start(req.Context(), req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", route),
				))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
				if err != nil {
					span.RecordError(err)
				}
			}

			fields := log.Fields{
				"method":   req.Method,
				"route":    route,
				"status":   status,
				"total_ms": float64(time.Since(start).Microseconds()) / 1000,
			}
			if user := currentUser(c); user != nil {
				fields["user_id"] = user.ID
			}
			logger.WithFields(fields).Debug("request completed")
			return nil
		}
	}
}

// authenticate verifies the bearer token and resolves the local user,
// creating it on first sight.
func authenticate(verifier Authenticator, users *service.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := verifier.VerifyHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}
			user, err := users.Resolve(c.Request().Context(), id.ExternalID, id.Name, id.Email)
			if err != nil {
				return err
			}
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// requireSubscription rejects callers whose plan does not unlock gated
// features.
func requireSubscription(gate *billing.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !gate.Access(currentUser(c)) {
				return fmt.Errorf("%w: An active subscription is required", apperr.ErrForbidden)
			}
			return next(c)
		}
	}
}

func currentUser(c echo.Context) *model.User {
	user, _ := c.Get(userKey).(*model.User)
	return user
}
