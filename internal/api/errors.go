package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/internal/account"
	"growtive/internal/auth"
	"growtive/internal/library"
	"growtive/internal/room"
	"growtive/pkg/types"
)

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed bearer token")
	errInvalidToken = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	errBadID        = echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Message interface{} `json:"message"`
}

type domainError struct {
	status int
	code   string
}

var domainErrors = map[error]domainError{
	account.ErrEmailExists:        {http.StatusConflict, "email_exists"},
	account.ErrInvalidCredentials: {http.StatusUnauthorized, "invalid_credentials"},
	account.ErrUserNotFound:       {http.StatusNotFound, "user_not_found"},
	account.ErrRoomNotFound:       {http.StatusNotFound, "room_not_found"},
	auth.ErrInvalidToken:          {http.StatusUnauthorized, "invalid_token"},
	auth.ErrPasswordTooLong:       {http.StatusBadRequest, "password_too_long"},
	library.ErrMaterialNotFound:   {http.StatusNotFound, "material_not_found"},
	library.ErrPremiumRequired:    {http.StatusForbidden, "premium_required"},
	library.ErrEmptyNote:          {http.StatusBadRequest, "empty_note"},
	library.ErrUserNotFound:       {http.StatusNotFound, "user_not_found"},
	room.ErrRoomNotFound:          {http.StatusNotFound, "room_not_found"},
	room.ErrInvalidMode:           {http.StatusBadRequest, "invalid_mode"},
	room.ErrInvalidRoomKey:        {http.StatusBadRequest, "invalid_room_key"},
	room.ErrInvalidUser:           {http.StatusUnauthorized, "invalid_user"},
	types.ErrUnknownPlan:          {http.StatusNotFound, "unknown_plan"},
}

// newHTTPErrorHandler returns an echo.HTTPErrorHandler that knows our errors.
func newHTTPErrorHandler(v *Validator) echo.HTTPErrorHandler {
	log := logrus.WithField("component", "api")

	return func(err error, ctx echo.Context) {
		status := http.StatusInternalServerError
		code := "internal_error"
		var message interface{} = http.StatusText(http.StatusInternalServerError)

		var (
			httpErr *echo.HTTPError
			valErrs validator.ValidationErrors
		)
		switch {
		case errors.As(err, &httpErr):
			if inner, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = inner
			}
			status = httpErr.Code
			code = codeForStatus(status)
			message = httpErr.Message
		case errors.As(err, &valErrs):
			status = http.StatusBadRequest
			code = "validation_failed"
			message = v.Translate(valErrs)
		default:
			if target, de, ok := lookupDomainError(err); ok {
				status, code = de.status, de.code
				message = target.Error()
				break
			}
			log.WithFields(logrus.Fields{
				"method": ctx.Request().Method,
				"path":   ctx.Path(),
			}).WithError(err).Error("request failed")
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(status)
		} else {
			err = ctx.JSON(status, ErrorResponse{Error: http.StatusText(status), Code: code, Message: message})
		}
		if err != nil {
			log.WithError(err).Error("writing error response")
		}
	}
}

func lookupDomainError(err error) (error, domainError, bool) {
	for target, de := range domainErrors {
		if errors.Is(err, target) {
			return target, de, true
		}
	}
	return nil, domainError{}, false
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "error"
	}
}
