package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/limiter"
)

// RateLimitByIP guards a public endpoint with the given limiter, keyed by
// client IP. The services apply their own actor and destination budgets;
// this is the outer guard on unauthenticated intake. Limiter backend errors
// fail open so a Redis outage does not take the endpoint down.
func RateLimitByIP(l limiter.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			err := l.Allow(c.Request().Context(), "ip:"+ip)
			if err != nil {
				if errors.Is(err, apperr.ErrRateLimit) {
					return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
				}
				c.Logger().Warnf("ratelimit: backend error for ip=%s: %v", ip, err)
			}
			return next(c)
		}
	}
}
