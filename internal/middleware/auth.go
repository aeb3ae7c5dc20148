// Package middleware provides the request guards shared by protected
// routes: session authentication, role enforcement, and rate limiting on
// the public intake endpoint.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/service"
	"github.com/showdeck/access/internal/utils"
)

// SessionAuth validates a Bearer session JWT and restores the referenced
// server-side session. The session record is re-read on every request, so a
// revocation or token rotation takes effect immediately regardless of the
// JWT's remaining lifetime. On success the actor user, session, and role are
// stored in the echo context under "actor", "session" and "role".
func SessionAuth(secret string, identity *service.IdentityService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			sid, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			ctx := c.Request().Context()
			sess, err := identity.RestoreSession(ctx, sid)
			if err != nil {
				switch {
				case errors.Is(err, apperr.ErrForbidden):
					return c.JSON(http.StatusForbidden, echo.Map{"error": "access revoked"})
				case errors.Is(err, apperr.ErrNotBootstrapped):
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "not bootstrapped"})
				default:
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
				}
			}
			actor, err := identity.UserForSession(ctx, sess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}

			c.Set("session", sess)
			c.Set("actor", actor)
			c.Set("role", string(actor.Role))
			return next(c)
		}
	}
}
