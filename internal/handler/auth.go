package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/config"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/service"
	"github.com/showdeck/access/internal/utils"
)

// AuthHandler bundles dependencies for identity endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Identity *service.IdentityService
}

func NewAuthHandler(cfg config.Config, identity *service.IdentityService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Identity: identity}
}

// ----- DTOs -----

type bootstrapReq struct {
	Username string `json:"username"`
}
type loginReq struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}
type sessionPart struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}
type loginResp struct {
	Session     sessionPart `json:"session"`
	BearerToken string      `json:"bearer_token"`
}

func sessionView(s *model.Session) sessionPart {
	return sessionPart{
		ID:        s.ID,
		Username:  s.Username,
		Role:      string(s.Role),
		CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Bootstrap creates the master admin. The raw token in the response is shown
// exactly once and never retrievable again.
func (h *AuthHandler) Bootstrap(c echo.Context) error {
	var req bootstrapReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	raw, err := h.Identity.Bootstrap(c.Request().Context(), req.Username)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"token": raw})
}

// Login exchanges username + raw token for the single live session and its
// JWT envelope.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/token required"})
	}

	sess, err := h.Identity.Login(c.Request().Context(), req.Username, req.Token,
		c.Request().UserAgent())
	if err != nil {
		return writeErr(c, err)
	}
	bearer, err := utils.NewSessionToken(h.Cfg.JWTSecret, sess.ID, sess.Username,
		string(sess.Role), h.Cfg.SessionTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, loginResp{Session: sessionView(sess), BearerToken: bearer.Token})
}

// Logout deletes the caller's session; absent sessions are a silent no-op.
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, ok := c.Get("session").(*model.Session)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.Identity.Logout(c.Request().Context(), sess.ID); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the restored session for the presented bearer.
func (h *AuthHandler) Me(c echo.Context) error {
	sess, ok := c.Get("session").(*model.Session)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
	}
	return c.JSON(http.StatusOK, sessionView(sess))
}
