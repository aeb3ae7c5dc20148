package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/service"
)

// RequestHandler exposes the token-request workflow: public intake plus the
// admin review actions.
type RequestHandler struct {
	Workflow *service.WorkflowService
}

func NewRequestHandler(wf *service.WorkflowService) *RequestHandler {
	return &RequestHandler{Workflow: wf}
}

// ----- DTOs -----

type submitReq struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	SocialHandle    string `json:"social_handle"`
	DesiredUsername string `json:"desired_username"`
	Phone           string `json:"phone"`
}

type requestPart struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	SocialHandle    string `json:"social_handle"`
	DesiredUsername string `json:"desired_username"`
	Phone           string `json:"phone"`
	Status          string `json:"status"`
	LinkedUserID    string `json:"linked_user_id,omitempty"`
	AdminNotify     string `json:"admin_notify"`
	ApplicantNotify string `json:"applicant_notify"`
	CreatedAt       string `json:"created_at"`
}

func requestView(r *model.TokenRequest) requestPart {
	return requestPart{
		ID:              r.ID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		SocialHandle:    r.SocialHandle,
		DesiredUsername: r.DesiredUsername,
		Phone:           r.Phone,
		Status:          string(r.Status),
		LinkedUserID:    r.LinkedUserID,
		AdminNotify:     string(r.AdminNotify),
		ApplicantNotify: string(r.ApplicantNotify),
		CreatedAt:       r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Submit is the public intake endpoint.
func (h *RequestHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	r, err := h.Workflow.SubmitRequest(c.Request().Context(), service.SubmitRequestInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		SocialHandle:    req.SocialHandle,
		DesiredUsername: req.DesiredUsername,
		Phone:           req.Phone,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, requestView(r))
}

type approveReq struct {
	Username string `json:"username"` // optional override of the desired username
}

// Approve creates the producer user and returns the one-time raw token.
func (h *RequestHandler) Approve(c echo.Context) error {
	var req approveReq
	_ = c.Bind(&req) // body optional
	raw, u, err := h.Workflow.ApproveRequest(c.Request().Context(), actorFrom(c),
		c.Param("id"), req.Username)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userView(u), "token": raw})
}

// Reject closes a pending request without creating a user.
func (h *RequestHandler) Reject(c echo.Context) error {
	if err := h.Workflow.RejectRequest(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RetryNotification re-runs the admin fan-out for a request.
func (h *RequestHandler) RetryNotification(c echo.Context) error {
	if err := h.Workflow.RetryAdminNotification(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns requests, optionally filtered with ?status=PENDING.
func (h *RequestHandler) List(c echo.Context) error {
	status := model.RequestStatus(c.QueryParam("status"))
	requests, err := h.Workflow.ListRequests(c.Request().Context(), actorFrom(c), status)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]requestPart, 0, len(requests))
	for _, r := range requests {
		out = append(out, requestView(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": out})
}

// Get returns one request.
func (h *RequestHandler) Get(c echo.Context) error {
	r, err := h.Workflow.GetRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, requestView(r))
}
