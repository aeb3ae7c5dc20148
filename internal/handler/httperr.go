package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/repository"
)

// writeErr maps the closed error taxonomy onto HTTP status codes. Anything
// outside the taxonomy is a 500 with a generic body; internals never leak.
func writeErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, apperr.ErrSessionExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
	case errors.Is(err, apperr.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, apperr.ErrRateLimit):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
	case errors.Is(err, apperr.ErrBootstrapComplete):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already bootstrapped"})
	case errors.Is(err, apperr.ErrRequestAlreadyProcessed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "request already processed"})
	case errors.Is(err, apperr.ErrRequestNotFound), errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, apperr.ErrNotBootstrapped):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "not bootstrapped"})
	case errors.Is(err, apperr.ErrProviderDown):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "delivery provider unavailable"})
	case errors.Is(err, repository.ErrVersionConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent modification, retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
