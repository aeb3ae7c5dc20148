// Package router wires HTTP routes to handlers and applies the middleware
// each group needs.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/handler"
	"github.com/showdeck/access/internal/limiter"
	"github.com/showdeck/access/internal/middleware"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/service"
)

// Register wires every route. Public endpoints: health, bootstrap, login and
// intake. Everything else requires a live session; admin routes additionally
// require ADMIN or MASTER_ADMIN, and the audit trail is master-only.
func Register(
	e *echo.Echo,
	auth *handler.AuthHandler,
	admin *handler.AdminHandler,
	requests *handler.RequestHandler,
	identity *service.IdentityService,
	intakeLimiter limiter.Limiter,
	jwtSecret string,
) {
	e.GET("/healthz", handler.Health)

	pub := e.Group("/v1")
	pub.POST("/bootstrap", auth.Bootstrap)
	pub.POST("/auth/login", auth.Login)
	pub.POST("/requests", requests.Submit, middleware.RateLimitByIP(intakeLimiter))

	sess := e.Group("/v1", middleware.SessionAuth(jwtSecret, identity))
	sess.POST("/auth/logout", auth.Logout)
	sess.GET("/me", auth.Me)

	adm := sess.Group("", middleware.RequireRole(
		string(model.RoleMasterAdmin), string(model.RoleAdmin)))
	adm.GET("/users", admin.ListUsers)
	adm.POST("/users", admin.CreateUser)
	adm.POST("/users/:username/refresh", admin.RefreshToken)
	adm.POST("/users/:username/access", admin.ToggleAccess)
	adm.DELETE("/users/:username", admin.DeleteUser)
	adm.GET("/deliveries/:id", admin.ListDeliveries)

	adm.GET("/requests", requests.List)
	adm.GET("/requests/:id", requests.Get)
	adm.POST("/requests/:id/approve", requests.Approve)
	adm.POST("/requests/:id/reject", requests.Reject)
	adm.POST("/requests/:id/notify", requests.RetryNotification)

	master := sess.Group("", middleware.RequireRole(string(model.RoleMasterAdmin)))
	master.GET("/audit", admin.ListAudit)
}
