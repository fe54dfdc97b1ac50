package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const (
	contextUserIDKey   = "user_id"
	contextUserNameKey = "user_name"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(token string) (userID int64, userName string, err error)
}

// requireAuth rejects requests without a valid bearer token and stores the
// caller's identity on the context.
func requireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return errMissingToken
			}

			userID, userName, err := auth.Authenticate(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(errInvalidToken.Code, errInvalidToken.Message).SetInternal(err)
			}
			ctx.Set(contextUserIDKey, userID)
			ctx.Set(contextUserNameKey, userName)
			return next(ctx)
		}
	}
}

func contextUserID(ctx echo.Context) int64 {
	id, _ := ctx.Get(contextUserIDKey).(int64)
	return id
}

func requestLogger() echo.MiddlewareFunc {
	log := logrus.WithField("component", "http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latency":   v.Latency.String(),
				"remote_ip": v.RemoteIP,
			})
			if id := contextUserID(ctx); id > 0 {
				entry = entry.WithField("user_id", id)
			}
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
