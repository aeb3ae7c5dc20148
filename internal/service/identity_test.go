package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/token"
)

func TestBootstrapIssuesMasterToken(t *testing.T) {
	e := newEnv(t)
	raw, master := e.bootstrapMaster(t)

	if !strings.HasPrefix(raw, token.PrefixMaster) {
		t.Errorf("expected %q prefix, got %q", token.PrefixMaster, raw)
	}
	if master.Role != model.RoleMasterAdmin {
		t.Errorf("expected master role, got %s", master.Role)
	}
	if master.Status != model.StatusActive {
		t.Errorf("expected active status, got %s", master.Status)
	}
	if master.Profile.Source != "BOOTSTRAP" {
		t.Errorf("expected BOOTSTRAP source, got %q", master.Profile.Source)
	}
	if master.TokenDigest != token.Digest(raw) {
		t.Error("stored digest does not match issued token")
	}
	if !hasAction(e.auditActions(t), model.AuditBootstrapped) {
		t.Error("bootstrap should leave an audit entry")
	}
}

func TestBootstrapOnlyOnce(t *testing.T) {
	e := newEnv(t)
	e.bootstrapMaster(t)

	_, err := e.identity.Bootstrap(context.Background(), "second")
	if !errors.Is(err, apperr.ErrBootstrapComplete) {
		t.Fatalf("second bootstrap should fail with ErrBootstrapComplete, got %v", err)
	}
}

func TestBootstrapRequiresUsername(t *testing.T) {
	e := newEnv(t)
	_, err := e.identity.Bootstrap(context.Background(), "   ")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	e := newEnv(t)
	e.bootstrapMaster(t)

	_, err := e.identity.Login(context.Background(), "nobody", "mk-whatever", "cli")
	if !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginWrongToken(t *testing.T) {
	e := newEnv(t)
	e.bootstrapMaster(t)

	_, err := e.identity.Login(context.Background(), "root", "mk-deadbeef", "cli")
	if !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if !hasAction(e.auditActions(t), model.AuditLoginFailed) {
		t.Error("digest mismatch should leave a LOGIN_FAILED audit entry")
	}
}

// The presented token may carry whitespace or hyphens from manual entry; the
// digest comparison sees through the formatting.
func TestLoginTokenFormattingIgnored(t *testing.T) {
	e := newEnv(t)
	raw, _ := e.bootstrapMaster(t)

	decorated := " " + raw[:4] + "-" + raw[4:] + "\n"
	if _, err := e.identity.Login(context.Background(), "ROOT", decorated, "cli"); err != nil {
		t.Fatalf("formatted token should authenticate: %v", err)
	}
}

func TestLoginSingleLiveSession(t *testing.T) {
	e := newEnv(t)
	raw, _ := e.bootstrapMaster(t)
	ctx := context.Background()

	first, err := e.identity.Login(ctx, "root", raw, "cli")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.identity.Login(ctx, "root", raw, "web")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.identity.RestoreSession(ctx, first.ID); !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("first session should be dead after second login, got %v", err)
	}
	if _, err := e.identity.RestoreSession(ctx, second.ID); err != nil {
		t.Fatalf("second session should restore: %v", err)
	}
}

// Concurrent logins for one username must never leave two live sessions,
// whatever order their store operations interleave in.
func TestConcurrentLoginsSingleLiveSession(t *testing.T) {
	e := newEnv(t)
	raw, _ := e.bootstrapMaster(t)
	ctx := context.Background()

	const logins = 10
	ids := make([]string, logins)
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := e.identity.Login(ctx, "root", raw, "cli")
			if err != nil {
				t.Errorf("login %d failed: %v", i, err)
				return
			}
			ids[i] = sess.ID
		}(i)
	}
	wg.Wait()

	live := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := e.identity.RestoreSession(ctx, id); err == nil {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected exactly 1 live session, got %d", live)
	}
}

func TestLoginRevokedUser(t *testing.T) {
	e := newEnv(t)
	_, master := e.bootstrapMaster(t)
	ctx := context.Background()

	raw, u := e.createActor(t, master, model.RoleProducer, "prod")
	u.Status = model.StatusRevoked
	if err := e.store.UpdateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	if _, err := e.identity.Login(ctx, "prod", raw, "cli"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("revoked user login should be forbidden, got %v", err)
	}
}

func TestLoginExpiredUser(t *testing.T) {
	e := newEnv(t)
	_, master := e.bootstrapMaster(t)
	ctx := context.Background()

	raw, _, err := e.admin.CreateUser(ctx, master, CreateUserInput{
		Username:        "shortlived",
		Role:            model.RoleProducer,
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.identity.Login(ctx, "shortlived", raw, "cli"); err != nil {
		t.Fatalf("login inside validity should succeed: %v", err)
	}
	e.clock.Advance(31 * time.Minute)
	if _, err := e.identity.Login(ctx, "shortlived", raw, "cli"); !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("login past expiry should fail, got %v", err)
	}
}

func TestRestoreSessionNotBootstrapped(t *testing.T) {
	e := newEnv(t)
	_, err := e.identity.RestoreSession(context.Background(), "any")
	if !errors.Is(err, apperr.ErrNotBootstrapped) {
		t.Fatalf("expected not-bootstrapped, got %v", err)
	}
}

func TestRestoreUnknownSession(t *testing.T) {
	e := newEnv(t)
	e.bootstrapMaster(t)

	_, err := e.identity.RestoreSession(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

// A revocation after session issuance must win on the next restore even when
// the session record itself survived.
func TestRestoreAfterRevocation(t *testing.T) {
	e := newEnv(t)
	_, master := e.bootstrapMaster(t)
	ctx := context.Background()

	raw, u := e.createActor(t, master, model.RoleProducer, "prod")
	sess, err := e.identity.Login(ctx, "prod", raw, "cli")
	if err != nil {
		t.Fatal(err)
	}

	fresh, err := e.store.GetUserByUsername(ctx, u.Username)
	if err != nil {
		t.Fatal(err)
	}
	fresh.Status = model.StatusRevoked
	if err := e.store.UpdateUser(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	if _, err := e.identity.RestoreSession(ctx, sess.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("restore for revoked owner should be forbidden, got %v", err)
	}
}

func TestRestoreExpiredOwner(t *testing.T) {
	e := newEnv(t)
	_, master := e.bootstrapMaster(t)
	ctx := context.Background()

	raw, _, err := e.admin.CreateUser(ctx, master, CreateUserInput{
		Username:        "shortlived",
		Role:            model.RoleProducer,
		DurationMinutes: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := e.identity.Login(ctx, "shortlived", raw, "cli")
	if err != nil {
		t.Fatal(err)
	}

	e.clock.Advance(11 * time.Minute)
	if _, err := e.identity.RestoreSession(ctx, sess.ID); !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("restore past owner expiry should fail, got %v", err)
	}
}

func TestLogoutRemovesSession(t *testing.T) {
	e := newEnv(t)
	raw, _ := e.bootstrapMaster(t)
	ctx := context.Background()

	sess, err := e.identity.Login(ctx, "root", raw, "cli")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.identity.Logout(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.identity.RestoreSession(ctx, sess.ID); !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("restore after logout should fail, got %v", err)
	}
}

func TestLogoutUnknownSessionIsNoop(t *testing.T) {
	e := newEnv(t)
	e.bootstrapMaster(t)
	if err := e.identity.Logout(context.Background(), "never-issued"); err != nil {
		t.Fatalf("logout of unknown session should be silent, got %v", err)
	}
}
