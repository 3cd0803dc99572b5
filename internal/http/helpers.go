package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"taxiledger/internal/auth"
	"taxiledger/internal/core"
	"taxiledger/internal/log"
	"taxiledger/internal/services"
)

// SessionCookie names the cookie holding the session token.
const SessionCookie = "taxi_session"

// errorResponse maps domain errors to status codes. Anything unknown is a 500
// and its text never reaches the client.
func errorResponse(ctx context.Context, op string, err error) *ResponseBuilder {
	switch {
	case errors.Is(err, auth.ErrEmptyLicense):
		return BadRequestError(err.Error())
	case errors.Is(err, auth.ErrIncorrectPassword), errors.Is(err, services.ErrNotLoggedIn):
		return UnauthorizedError(err.Error())
	case errors.Is(err, auth.ErrWrongStage):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, core.ErrInvalidDate), errors.Is(err, services.ErrInvalidMonth):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, services.ErrConfirmationRequired):
		return ErrorResponse(http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, services.ErrEntryNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, errInvalidEntryID):
		return BadRequestError(err.Error())
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, op, nil)
	return InternalServerError("internal error")
}

func sessionCookie(r *http.Request, token string, idle time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(idle.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredSessionCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
