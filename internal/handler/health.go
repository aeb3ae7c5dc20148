package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and monitors.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
