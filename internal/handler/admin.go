package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
	"github.com/showdeck/access/internal/service"
)

// AdminHandler exposes user administration to the director console.
type AdminHandler struct {
	Admin      *service.AdminService
	Audit      repository.AuditStore
	Deliveries repository.DeliveryStore
}

func NewAdminHandler(admin *service.AdminService, auditStore repository.AuditStore, deliveries repository.DeliveryStore) *AdminHandler {
	return &AdminHandler{Admin: admin, Audit: auditStore, Deliveries: deliveries}
}

func actorFrom(c echo.Context) *model.User {
	actor, _ := c.Get("actor").(*model.User)
	return actor
}

// ----- DTOs -----

type createUserReq struct {
	Username        string `json:"username"`
	Role            string `json:"role"` // ADMIN | PRODUCER
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Name            string `json:"name"`
	SocialHandle    string `json:"social_handle"`
	DurationMinutes int    `json:"duration_minutes"`
}

type userPart struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Name      string `json:"name,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

func userView(u *model.User) userPart {
	p := userPart{
		ID:        u.ID,
		Username:  u.Username,
		Role:      string(u.Role),
		Status:    string(u.Status),
		Email:     u.Email,
		Phone:     u.Phone,
		Name:      u.Profile.Name,
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if u.ExpiresAt != nil {
		p.ExpiresAt = u.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return p
}

// CreateUser mints a new ADMIN or PRODUCER and returns the one-time token.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	raw, u, err := h.Admin.CreateUser(c.Request().Context(), actorFrom(c), service.CreateUserInput{
		Username:        req.Username,
		Role:            model.Role(req.Role),
		Email:           req.Email,
		Phone:           req.Phone,
		Name:            req.Name,
		SocialHandle:    req.SocialHandle,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": userView(u), "token": raw})
}

// RefreshToken rotates a user's token; the old one stops working and any
// session is killed.
func (h *AdminHandler) RefreshToken(c echo.Context) error {
	raw, err := h.Admin.RefreshToken(c.Request().Context(), actorFrom(c), c.Param("username"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": raw})
}

type toggleReq struct {
	Revoke bool `json:"revoke"`
}

// ToggleAccess revokes or restores a user.
func (h *AdminHandler) ToggleAccess(c echo.Context) error {
	var req toggleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Admin.ToggleAccess(c.Request().Context(), actorFrom(c), c.Param("username"), req.Revoke); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser hard-deletes a user.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	if err := h.Admin.DeleteUser(c.Request().Context(), actorFrom(c), c.Param("username")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers returns all principals.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.Admin.ListUsers(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// ListAudit returns the most recent audit entries (master admin only; the
// route applies the role guard).
func (h *AdminHandler) ListAudit(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	entries, err := h.Audit.ListAudit(c.Request().Context(), limit)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

// ListDeliveries returns the delivery log for one user or request id.
func (h *AdminHandler) ListDeliveries(c echo.Context) error {
	logs, err := h.Deliveries.ListDeliveryForOwner(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deliveries": logs})
}
