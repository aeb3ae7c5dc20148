package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/delivery"
	"github.com/showdeck/access/internal/limiter"
	"github.com/showdeck/access/internal/model"
)

// fakeGateway records every send and fails the destinations told to fail.
type fakeGateway struct {
	mu   sync.Mutex
	sent []string // destinations, in order
	fail map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{fail: map[string]bool{}}
}

func (g *fakeGateway) Send(_ context.Context, destination string, _ model.Channel, _ string) (delivery.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, destination)
	if g.fail[destination] {
		return delivery.Result{}, fmt.Errorf("provider rejected %s", destination)
	}
	return delivery.Result{ProviderRef: "ref-" + destination}, nil
}

func (g *fakeGateway) failDest(dest string)    { g.mu.Lock(); g.fail[dest] = true; g.mu.Unlock() }
func (g *fakeGateway) recoverDest(dest string) { g.mu.Lock(); delete(g.fail, dest); g.mu.Unlock() }

const (
	adminSMS   = "+15550000001"
	adminEmail = "ops@example.com"
)

func newWorkflow(t *testing.T, e *env, gw *fakeGateway, destBudget int) *WorkflowService {
	t.Helper()
	dests := limiter.NewSlidingWindow(destBudget, time.Minute).WithClock(e.clock.Now)
	actors := limiter.NewSlidingWindow(1000, time.Minute).WithClock(e.clock.Now)
	return NewWorkflowService(e.store, e.store, e.store, gw, dests, actors, e.rec,
		[]AdminDestination{
			{Destination: adminSMS, Channel: model.ChannelSMS},
			{Destination: adminEmail, Channel: model.ChannelEmail},
		}).WithClock(e.clock.Now)
}

func submit(t *testing.T, wf *WorkflowService, username, rawPhone string) *model.TokenRequest {
	t.Helper()
	r, err := wf.SubmitRequest(context.Background(), SubmitRequestInput{
		FirstName:       "Jamie",
		LastName:        "Rivera",
		SocialHandle:    "@jamier",
		DesiredUsername: username,
		Phone:           rawPhone,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return r
}

func TestSubmitRequestNormalizesPhone(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)

	r := submit(t, wf, "NewProducer", "555-123-4567")

	if r.Phone != "+15551234567" {
		t.Errorf("expected normalized phone, got %q", r.Phone)
	}
	if r.DesiredUsername != "newproducer" {
		t.Errorf("expected lowercased username, got %q", r.DesiredUsername)
	}
	if r.Status != model.RequestPending {
		t.Errorf("expected PENDING, got %s", r.Status)
	}
	if r.AdminNotify != model.NotifyPending || r.ApplicantNotify != model.NotifyPending {
		t.Error("notify fields should start PENDING")
	}
	if !hasAction(e.auditActions(t), model.AuditRequestSubmitted) {
		t.Error("submission should leave an audit entry")
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()

	_, err := wf.SubmitRequest(ctx, SubmitRequestInput{FirstName: "Jamie", DesiredUsername: "x", Phone: "notaphone"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad phone should fail validation, got %v", err)
	}
	_, err = wf.SubmitRequest(ctx, SubmitRequestInput{FirstName: "", DesiredUsername: "x", Phone: "4155551234"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing name should fail validation, got %v", err)
	}
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (n *recordingNotifier) RequestSubmitted(requestID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, requestID)
	return n.err
}

func TestSubmitHandsOffToNotifier(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	n := &recordingNotifier{}
	wf.SetNotifier(n)

	r := submit(t, wf, "someone", "4155551234")
	if len(n.ids) != 1 || n.ids[0] != r.ID {
		t.Fatalf("notifier should receive the request id, got %v", n.ids)
	}

	// A failing handoff never fails the submission.
	n.err = errors.New("broker down")
	if _, err := wf.SubmitRequest(context.Background(), SubmitRequestInput{
		FirstName: "Sam", DesiredUsername: "sam", Phone: "4155551235",
	}); err != nil {
		t.Fatalf("submit should survive a handoff failure: %v", err)
	}
}

func TestNotifyAdminsAnySuccessMarksSent(t *testing.T) {
	e := newEnv(t)
	gw := newFakeGateway()
	gw.failDest(adminSMS)
	wf := newWorkflow(t, e, gw, 100)
	ctx := context.Background()

	r := submit(t, wf, "someone", "4155551234")
	if err := wf.NotifyAdmins(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	fresh, err := e.store.GetRequest(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.AdminNotify != model.NotifySent {
		t.Fatalf("one delivered destination should mark SENT, got %s", fresh.AdminNotify)
	}
	if fresh.AdminNotifyErr != "" {
		t.Errorf("error should be cleared on success, got %q", fresh.AdminNotifyErr)
	}

	logs, err := e.store.ListDeliveryForOwner(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 delivery entries, got %d", len(logs))
	}
	byDest := map[string]model.DeliveryStatus{}
	for _, l := range logs {
		byDest[l.Destination] = l.Status
	}
	if byDest[adminSMS] != model.DeliveryFailed || byDest[adminEmail] != model.DeliverySent {
		t.Errorf("unexpected per-destination outcomes: %v", byDest)
	}
}

func TestNotifyAdminsTotalFailureAndRetry(t *testing.T) {
	e := newEnv(t)
	gw := newFakeGateway()
	gw.failDest(adminSMS)
	gw.failDest(adminEmail)
	wf := newWorkflow(t, e, gw, 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "someone", "4155551234")
	if err := wf.NotifyAdmins(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	fresh, _ := e.store.GetRequest(ctx, r.ID)
	if fresh.AdminNotify != model.NotifyFailed {
		t.Fatalf("total failure should mark FAILED, got %s", fresh.AdminNotify)
	}
	if fresh.AdminNotifyErr == "" {
		t.Error("failure reason should be recorded")
	}

	gw.recoverDest(adminSMS)
	gw.recoverDest(adminEmail)
	if err := wf.RetryAdminNotification(ctx, master, r.ID); err != nil {
		t.Fatal(err)
	}
	fresh, _ = e.store.GetRequest(ctx, r.ID)
	if fresh.AdminNotify != model.NotifySent {
		t.Fatalf("retry should mark SENT, got %s", fresh.AdminNotify)
	}
}

// The intake alert announces a pending request; once the request is decided
// there is nothing left to announce.
func TestRetryNotificationOnProcessedRequest(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "someone", "4155551234")
	if _, _, err := wf.ApproveRequest(ctx, master, r.ID, ""); err != nil {
		t.Fatal(err)
	}
	err := wf.RetryAdminNotification(ctx, master, r.ID)
	if !errors.Is(err, apperr.ErrRequestAlreadyProcessed) {
		t.Fatalf("retry on a processed request should fail, got %v", err)
	}
}

func TestRetryNotificationRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	producer := &model.User{ID: "p1", Role: model.RoleProducer}

	err := wf.RetryAdminNotification(context.Background(), producer, "whatever")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestApproveCreatesProducer(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "newproducer", "4155550123")
	raw, u, err := wf.ApproveRequest(ctx, master, r.ID, "")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(raw, "pk-") {
		t.Errorf("producer token should carry pk- prefix, got %q", raw)
	}
	if u.Role != model.RoleProducer || u.Username != "newproducer" {
		t.Errorf("unexpected user %+v", u)
	}
	if u.Phone != "+14155550123" {
		t.Errorf("phone should carry over normalized, got %q", u.Phone)
	}
	if u.Profile.Source != "TOKEN_REQUEST" || u.Profile.RequestID != r.ID {
		t.Errorf("user should link back to the request, got %+v", u.Profile)
	}

	fresh, _ := e.store.GetRequest(ctx, r.ID)
	if fresh.Status != model.RequestApproved {
		t.Fatalf("expected APPROVED, got %s", fresh.Status)
	}
	if fresh.LinkedUserID != u.ID {
		t.Error("request should link to the created user")
	}
	if fresh.ApplicantNotify != model.NotifySent {
		t.Errorf("applicant should be notified, got %s", fresh.ApplicantNotify)
	}

	if _, err := e.identity.Login(ctx, "newproducer", raw, "cli"); err != nil {
		t.Fatalf("issued token should authenticate: %v", err)
	}
}

func TestApproveTwice(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "newproducer", "4155550123")
	if _, _, err := wf.ApproveRequest(ctx, master, r.ID, ""); err != nil {
		t.Fatal(err)
	}
	_, _, err := wf.ApproveRequest(ctx, master, r.ID, "other")
	if !errors.Is(err, apperr.ErrRequestAlreadyProcessed) {
		t.Fatalf("second approval should fail, got %v", err)
	}

	producers, err := e.store.ListUsersByRole(ctx, model.RoleProducer)
	if err != nil {
		t.Fatal(err)
	}
	if len(producers) != 1 {
		t.Fatalf("exactly one producer must exist, got %d", len(producers))
	}
}

func TestApproveWithUsernameOverride(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "wanted", "4155550123")
	_, u, err := wf.ApproveRequest(ctx, master, r.ID, "Granted")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "granted" {
		t.Fatalf("override should win lowercased, got %q", u.Username)
	}
}

func TestApproveUsernameTakenKeepsRequestPending(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)
	e.createActor(t, master, model.RoleProducer, "taken")

	r := submit(t, wf, "taken", "4155550123")
	_, _, err := wf.ApproveRequest(ctx, master, r.ID, "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fresh, _ := e.store.GetRequest(ctx, r.ID)
	if fresh.Status != model.RequestPending {
		t.Fatalf("request should stay PENDING for a retry, got %s", fresh.Status)
	}
}

func TestApproveAuthorization(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	producer := &model.User{ID: "p1", Role: model.RoleProducer}

	if _, _, err := wf.ApproveRequest(ctx, producer, "any", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("producer approval should be forbidden, got %v", err)
	}
	if err := wf.RejectRequest(ctx, producer, "any"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("producer rejection should be forbidden, got %v", err)
	}
}

func TestApproveUnknownRequest(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	_, master := e.bootstrapMaster(t)

	_, _, err := wf.ApproveRequest(context.Background(), master, "missing", "")
	if !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestRejectRequest(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "denied", "4155550123")
	if err := wf.RejectRequest(ctx, master, r.ID); err != nil {
		t.Fatal(err)
	}

	fresh, _ := e.store.GetRequest(ctx, r.ID)
	if fresh.Status != model.RequestRejected {
		t.Fatalf("expected REJECTED, got %s", fresh.Status)
	}
	if len(mustListProducers(t, e)) != 0 {
		t.Fatal("rejection must not create a user")
	}

	// Status transitions are one-way.
	if _, _, err := wf.ApproveRequest(ctx, master, r.ID, ""); !errors.Is(err, apperr.ErrRequestAlreadyProcessed) {
		t.Fatalf("approving a rejected request should fail, got %v", err)
	}
}

func mustListProducers(t *testing.T, e *env) []*model.User {
	t.Helper()
	producers, err := e.store.ListUsersByRole(context.Background(), model.RoleProducer)
	if err != nil {
		t.Fatal(err)
	}
	return producers
}

// A dead applicant phone must not unwind the approval: the user and token
// stand, the failure lands on the request record.
func TestApplicantNotifyFailureKeepsApproval(t *testing.T) {
	e := newEnv(t)
	gw := newFakeGateway()
	gw.failDest("+14155550123")
	wf := newWorkflow(t, e, gw, 100)
	ctx := context.Background()
	_, master := e.bootstrapMaster(t)

	r := submit(t, wf, "newproducer", "4155550123")
	raw, _, err := wf.ApproveRequest(ctx, master, r.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if raw == "" {
		t.Fatal("approval should still return the token")
	}

	fresh, _ := e.store.GetRequest(ctx, r.ID)
	if fresh.Status != model.RequestApproved {
		t.Fatalf("approval should stand, got %s", fresh.Status)
	}
	if fresh.ApplicantNotify != model.NotifyFailed || fresh.ApplicantNotifyErr == "" {
		t.Fatalf("notify failure should be recorded, got %s %q", fresh.ApplicantNotify, fresh.ApplicantNotifyErr)
	}
}

func TestSendMessageProviderDown(t *testing.T) {
	e := newEnv(t)
	gw := newFakeGateway()
	gw.failDest("+15559999999")
	wf := newWorkflow(t, e, gw, 100)
	ctx := context.Background()

	entry, err := wf.SendMessage(ctx, "owner-1", "+15559999999", model.ChannelSMS, "hello")
	if !errors.Is(err, apperr.ErrProviderDown) {
		t.Fatalf("expected provider down, got %v", err)
	}
	if entry.Status != model.DeliveryFailed {
		t.Fatalf("failed attempt should be logged FAILED, got %s", entry.Status)
	}
}

// Per-destination budget: once exhausted the attempt fails with the rate
// limit error and still lands in the delivery log.
func TestSendMessageDestinationBudget(t *testing.T) {
	e := newEnv(t)
	wf := newWorkflow(t, e, newFakeGateway(), 1)
	ctx := context.Background()

	if _, err := wf.SendMessage(ctx, "owner-1", "+15551230000", model.ChannelSMS, "first"); err != nil {
		t.Fatal(err)
	}
	entry, err := wf.SendMessage(ctx, "owner-1", "+15551230000", model.ChannelSMS, "second")
	if !errors.Is(err, apperr.ErrRateLimit) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if entry.Status != model.DeliveryFailed {
		t.Fatalf("rate-limited attempt should be logged FAILED, got %s", entry.Status)
	}

	logs, err := e.store.ListDeliveryForOwner(ctx, "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("both attempts should be logged, got %d", len(logs))
	}
}
