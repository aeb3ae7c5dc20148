package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/audit"
	"github.com/showdeck/access/internal/delivery"
	"github.com/showdeck/access/internal/limiter"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/phone"
	"github.com/showdeck/access/internal/repository"
	"github.com/showdeck/access/internal/token"
)

// AdminDestination is one administrator contact point for the intake
// fan-out.
type AdminDestination struct {
	Destination string
	Channel     model.Channel
}

// WorkflowService drives the request -> review -> approval pipeline. The
// admin fan-out runs behind a Notifier so the submitter never waits on, or
// fails because of, delivery.
type WorkflowService struct {
	users      repository.UserStore
	requests   repository.RequestStore
	deliveries repository.DeliveryStore
	gateway    delivery.Gateway
	dests      limiter.Limiter // destination budget
	actors     limiter.Limiter // actor budget, shared with AdminService
	audit      *audit.Recorder
	adminDests []AdminDestination
	notifier   Notifier
	now        func() time.Time
}

func NewWorkflowService(
	users repository.UserStore,
	requests repository.RequestStore,
	deliveries repository.DeliveryStore,
	gateway delivery.Gateway,
	dests, actors limiter.Limiter,
	rec *audit.Recorder,
	adminDests []AdminDestination,
) *WorkflowService {
	return &WorkflowService{
		users:      users,
		requests:   requests,
		deliveries: deliveries,
		gateway:    gateway,
		dests:      dests,
		actors:     actors,
		audit:      rec,
		adminDests: adminDests,
		now:        time.Now,
	}
}

// SetNotifier installs the fan-out handoff (AMQP publisher or in-process
// goroutine). Wired after construction because the in-process notifier runs
// this same service's NotifyAdmins.
func (s *WorkflowService) SetNotifier(n Notifier) { s.notifier = n }

// WithClock replaces the time source for deterministic tests.
func (s *WorkflowService) WithClock(now func() time.Time) *WorkflowService {
	s.now = now
	return s
}

// SubmitRequestInput is the public intake payload.
type SubmitRequestInput struct {
	FirstName       string
	LastName        string
	SocialHandle    string
	DesiredUsername string
	Phone           string
}

// SubmitRequest validates and persists an intake record, then hands the
// admin notification off. The handoff is best-effort: its failure is logged
// and never rolls back the submission.
func (s *WorkflowService) SubmitRequest(ctx context.Context, in SubmitRequestInput) (*model.TokenRequest, error) {
	first := strings.TrimSpace(in.FirstName)
	username := strings.ToLower(strings.TrimSpace(in.DesiredUsername))
	if first == "" || username == "" {
		return nil, fmt.Errorf("%w: name and desired username required", apperr.ErrValidation)
	}
	normalized, ok := phone.NormalizeE164(in.Phone)
	if !ok {
		return nil, fmt.Errorf("%w: phone must be E.164", apperr.ErrValidation)
	}

	now := s.now().UTC()
	r := &model.TokenRequest{
		ID:              uuid.NewString(),
		FirstName:       first,
		LastName:        strings.TrimSpace(in.LastName),
		SocialHandle:    strings.TrimSpace(in.SocialHandle),
		DesiredUsername: username,
		Phone:           normalized,
		Status:          model.RequestPending,
		AdminNotify:     model.NotifyPending,
		ApplicantNotify: model.NotifyPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.requests.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "public", "", r.ID, model.AuditRequestSubmitted,
		fmt.Sprintf("token request for %q", username), nil)

	if s.notifier != nil {
		if err := s.notifier.RequestSubmitted(r.ID); err != nil {
			log.Printf("workflow: admin notification handoff failed for %s: %v", r.ID, err)
		}
	}
	return r, nil
}

// NotifyAdmins fans the intake alert out to every configured administrator
// destination. One success marks the request SENT; only total failure marks
// it FAILED. Per-destination outcomes land in the delivery log either way.
func (s *WorkflowService) NotifyAdmins(ctx context.Context, requestID string) error {
	r, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrRequestNotFound
		}
		return err
	}

	content := fmt.Sprintf("New token request from %s %s (@%s) for username %q",
		r.FirstName, r.LastName, r.SocialHandle, r.DesiredUsername)

	anySent := false
	var lastErr string
	for _, d := range s.adminDests {
		_, err := s.send(ctx, r.ID, d.Destination, d.Channel, content)
		if err != nil {
			lastErr = err.Error()
			continue
		}
		anySent = true
	}

	return s.updateRequest(ctx, requestID, func(fresh *model.TokenRequest) {
		if anySent {
			fresh.AdminNotify = model.NotifySent
			fresh.AdminNotifyErr = ""
		} else {
			fresh.AdminNotify = model.NotifyFailed
			fresh.AdminNotifyErr = lastErr
		}
		fresh.UpdatedAt = s.now().UTC()
	})
}

// RetryAdminNotification re-runs the fan-out under administrator authority.
// Only pending requests qualify: a processed request needs no "new request"
// alert anymore.
func (s *WorkflowService) RetryAdminNotification(ctx context.Context, actor *model.User, requestID string) error {
	if actor == nil || (actor.Role != model.RoleMasterAdmin && actor.Role != model.RoleAdmin) {
		return apperr.ErrForbidden
	}
	r, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrRequestNotFound
		}
		return err
	}
	if r.Status != model.RequestPending {
		return apperr.ErrRequestAlreadyProcessed
	}
	return s.NotifyAdmins(ctx, requestID)
}

// ApproveRequest turns a pending request into a PRODUCER user and returns
// the one-time raw token. The compare-and-swap transition guarantees the
// second of two racing approvals fails and exactly one user survives. A
// failed applicant notification is recorded on the request but never undoes
// the approval.
func (s *WorkflowService) ApproveRequest(ctx context.Context, actor *model.User, requestID, usernameOverride string) (string, *model.User, error) {
	if actor == nil || (actor.Role != model.RoleMasterAdmin && actor.Role != model.RoleAdmin) {
		return "", nil, apperr.ErrForbidden
	}
	r, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, apperr.ErrRequestNotFound
		}
		return "", nil, err
	}
	if r.Status != model.RequestPending {
		return "", nil, apperr.ErrRequestAlreadyProcessed
	}
	if err := s.actors.Allow(ctx, actor.ID); err != nil {
		return "", nil, err
	}

	username := strings.ToLower(strings.TrimSpace(usernameOverride))
	if username == "" {
		username = r.DesiredUsername
	}

	raw, err := token.Issue(token.PrefixProducer)
	if err != nil {
		return "", nil, err
	}
	now := s.now().UTC()
	u := &model.User{
		ID:          uuid.NewString(),
		Username:    username,
		TokenDigest: token.Digest(raw),
		Role:        model.RoleProducer,
		Status:      model.StatusActive,
		Phone:       r.Phone,
		Profile: model.Profile{
			Name:         strings.TrimSpace(r.FirstName + " " + r.LastName),
			SocialHandle: r.SocialHandle,
			Source:       "TOKEN_REQUEST",
			RequestID:    r.ID,
		},
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return "", nil, fmt.Errorf("%w: username taken", apperr.ErrValidation)
		}
		return "", nil, err
	}

	err = s.transition(ctx, requestID, model.RequestApproved, u.ID)
	if err != nil {
		// Lost the transition race: remove the user this call created so
		// the winning approval's user is the only one.
		_ = s.users.DeleteUser(ctx, u.ID)
		return "", nil, err
	}

	s.audit.Record(ctx, actor.ID, actor.Role, r.ID, model.AuditRequestApproved,
		fmt.Sprintf("approved request for %q, user %s", username, u.ID), nil)

	// Applicant notification: recorded as data, never unwinds the approval.
	content := fmt.Sprintf("Your producer access was approved. Username: %s Token: %s", username, raw)
	_, sendErr := s.send(ctx, r.ID, r.Phone, model.ChannelSMS, content)
	notifyUpdate := s.updateRequest(ctx, requestID, func(fresh *model.TokenRequest) {
		if sendErr != nil {
			fresh.ApplicantNotify = model.NotifyFailed
			fresh.ApplicantNotifyErr = sendErr.Error()
		} else {
			fresh.ApplicantNotify = model.NotifySent
			fresh.ApplicantNotifyErr = ""
		}
		fresh.UpdatedAt = s.now().UTC()
	})
	if notifyUpdate != nil {
		log.Printf("workflow: recording applicant notify outcome failed for %s: %v", requestID, notifyUpdate)
	}

	return raw, u, nil
}

// RejectRequest closes a pending request without creating a user.
func (s *WorkflowService) RejectRequest(ctx context.Context, actor *model.User, requestID string) error {
	if actor == nil || (actor.Role != model.RoleMasterAdmin && actor.Role != model.RoleAdmin) {
		return apperr.ErrForbidden
	}
	r, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrRequestNotFound
		}
		return err
	}
	if r.Status != model.RequestPending {
		return apperr.ErrRequestAlreadyProcessed
	}
	if err := s.transition(ctx, requestID, model.RequestRejected, ""); err != nil {
		return err
	}
	s.audit.Record(ctx, actor.ID, actor.Role, r.ID, model.AuditRequestRejected,
		fmt.Sprintf("rejected request for %q", r.DesiredUsername), nil)
	return nil
}

// ListRequests returns intake records, optionally filtered by status.
func (s *WorkflowService) ListRequests(ctx context.Context, actor *model.User, status model.RequestStatus) ([]*model.TokenRequest, error) {
	if actor == nil || (actor.Role != model.RoleMasterAdmin && actor.Role != model.RoleAdmin) {
		return nil, apperr.ErrForbidden
	}
	return s.requests.ListRequests(ctx, status)
}

// GetRequest loads one request for display.
func (s *WorkflowService) GetRequest(ctx context.Context, id string) (*model.TokenRequest, error) {
	r, err := s.requests.GetRequest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrRequestNotFound
	}
	return r, err
}

// SendMessage is the direct send operation used by the console (e.g. resend
// a notification). It consumes destination budget, records the outcome, and
// surfaces a gateway failure as a provider-down error.
func (s *WorkflowService) SendMessage(ctx context.Context, ownerID, destination string, channel model.Channel, content string) (*model.DeliveryLog, error) {
	entry, err := s.send(ctx, ownerID, destination, channel, content)
	if err != nil && !errors.Is(err, apperr.ErrRateLimit) {
		return entry, fmt.Errorf("%w: %v", apperr.ErrProviderDown, err)
	}
	return entry, err
}

// send performs one delivery attempt under the destination budget and
// appends the outcome to the delivery log. The returned error is the reason
// the attempt failed; the log entry exists either way (except when the
// append itself fails, which is only logged).
func (s *WorkflowService) send(ctx context.Context, ownerID, destination string, channel model.Channel, content string) (*model.DeliveryLog, error) {
	entry := &model.DeliveryLog{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Destination: destination,
		Channel:     channel,
		At:          s.now().UTC(),
	}

	var sendErr error
	if err := s.dests.Allow(ctx, destination); err != nil {
		sendErr = err
	} else {
		res, err := s.gateway.Send(ctx, destination, channel, content)
		if err != nil {
			sendErr = err
		} else {
			entry.ProviderRef = res.ProviderRef
		}
	}

	if sendErr != nil {
		entry.Status = model.DeliveryFailed
		entry.Error = sendErr.Error()
	} else {
		entry.Status = model.DeliverySent
	}
	if err := s.deliveries.AppendDelivery(ctx, entry); err != nil {
		log.Printf("workflow: delivery log append failed: %v", err)
	}
	return entry, sendErr
}

// transition performs the one-way status change with compare-and-swap. A
// version conflict caused by a concurrent notify-field update is retried; a
// conflict caused by the request already being processed is terminal.
func (s *WorkflowService) transition(ctx context.Context, requestID string, to model.RequestStatus, linkedUserID string) error {
	for attempt := 0; attempt < 3; attempt++ {
		fresh, err := s.requests.GetRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrRequestNotFound
			}
			return err
		}
		if fresh.Status != model.RequestPending {
			return apperr.ErrRequestAlreadyProcessed
		}
		fresh.Status = to
		if linkedUserID != "" {
			fresh.LinkedUserID = linkedUserID
		}
		fresh.UpdatedAt = s.now().UTC()
		err = s.requests.UpdateRequest(ctx, fresh)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return apperr.ErrRequestAlreadyProcessed
}

// updateRequest reloads, applies mutate, and writes back, retrying version
// conflicts. Used for the independent notification-status fields, which may
// race with the status transition.
func (s *WorkflowService) updateRequest(ctx context.Context, requestID string, mutate func(*model.TokenRequest)) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		fresh, err := s.requests.GetRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrRequestNotFound
			}
			return err
		}
		mutate(fresh)
		err = s.requests.UpdateRequest(ctx, fresh)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
