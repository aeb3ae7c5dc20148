// Package service contains the access-control engines: identity and
// sessions, user administration under RBAC, and the token-request workflow.
// Services take their stores, clock and collaborators as dependencies so
// tests can run them against the in-memory store with a fake clock.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/showdeck/access/internal/apperr"
	"github.com/showdeck/access/internal/audit"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
	"github.com/showdeck/access/internal/token"
)

// IdentityService owns bootstrap, login, logout and session restore.
type IdentityService struct {
	users    repository.UserStore
	sessions repository.SessionStore
	boot     repository.BootstrapStore
	audit    *audit.Recorder
	now      func() time.Time
}

func NewIdentityService(users repository.UserStore, sessions repository.SessionStore, boot repository.BootstrapStore, rec *audit.Recorder) *IdentityService {
	return &IdentityService{users: users, sessions: sessions, boot: boot, audit: rec, now: time.Now}
}

// WithClock replaces the time source for deterministic tests.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// Bootstrap creates the sole master admin and returns its one-time raw
// token. The conditional marker insert is what makes a concurrent second
// bootstrap fail instead of minting a second master: whichever writer loses
// the insert gets ErrBootstrapComplete before any user exists for it.
func (s *IdentityService) Bootstrap(ctx context.Context, username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", fmt.Errorf("%w: username required", apperr.ErrValidation)
	}

	if _, err := s.boot.GetBootstrap(ctx); err == nil {
		return "", apperr.ErrBootstrapComplete
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	raw, err := token.Issue(token.PrefixMaster)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	master := &model.User{
		ID:          uuid.NewString(),
		Username:    username,
		TokenDigest: token.Digest(raw),
		Role:        model.RoleMasterAdmin,
		Status:      model.StatusActive,
		Profile:     model.Profile{Source: "BOOTSTRAP"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	marker := &model.Bootstrap{MasterReady: true, MasterAdminID: master.ID, CreatedAt: now}
	if err := s.boot.CreateBootstrap(ctx, marker); err != nil {
		if errors.Is(err, repository.ErrBootstrapExists) {
			return "", apperr.ErrBootstrapComplete
		}
		return "", err
	}
	if err := s.users.CreateUser(ctx, master); err != nil {
		// Roll the marker back so a later bootstrap can succeed; the
		// deployment is otherwise bricked with a marker and no master.
		_ = s.boot.DeleteBootstrap(ctx)
		return "", err
	}

	s.audit.Record(ctx, master.ID, model.RoleMasterAdmin, master.ID,
		model.AuditBootstrapped, "master admin created", nil)
	return raw, nil
}

// Login authenticates a presented token and issues the user's single live
// session, removing any prior ones first. Unknown usernames and digest
// mismatches are indistinguishable to the caller.
func (s *IdentityService) Login(ctx context.Context, username, rawToken, client string) (*model.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if token.Digest(rawToken) != u.TokenDigest {
		s.audit.Record(ctx, u.ID, u.Role, u.ID, model.AuditLoginFailed,
			"token digest mismatch", nil)
		return nil, apperr.ErrInvalidCredentials
	}
	if u.Status == model.StatusRevoked {
		return nil, apperr.ErrForbidden
	}
	now := s.now().UTC()
	if u.ExpiresAt != nil && now.After(*u.ExpiresAt) {
		return nil, apperr.ErrSessionExpired
	}

	sess := &model.Session{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      u.Role,
		Client:    client,
		CreatedAt: now,
	}
	// Atomic swap: interleaved logins for the same username can never leave
	// two live sessions behind.
	if err := s.sessions.ReplaceSessionsForUser(ctx, username, sess); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, u.ID, u.Role, u.ID, model.AuditLogin, "login", nil)
	return sess, nil
}

// Logout deletes the session if it exists; logging out an unknown session is
// a silent no-op.
func (s *IdentityService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if u, err := s.users.GetUserByUsername(ctx, sess.Username); err == nil {
		s.audit.Record(ctx, u.ID, u.Role, u.ID, model.AuditLogout, "logout", nil)
	}
	return nil
}

// RestoreSession re-validates a stored session id against the current state
// of its owner. A revocation or token rotation that happened after issuance
// wins here: the session is gone or the owner is refused.
func (s *IdentityService) RestoreSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if _, err := s.boot.GetBootstrap(ctx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotBootstrapped
		}
		return nil, err
	}
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrSessionExpired
		}
		return nil, err
	}
	u, err := s.users.GetUserByUsername(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Status == model.StatusRevoked {
		return nil, apperr.ErrForbidden
	}
	if u.ExpiresAt != nil && s.now().UTC().After(*u.ExpiresAt) {
		return nil, apperr.ErrSessionExpired
	}
	return sess, nil
}

// UserForSession loads the owning user of a restored session.
func (s *IdentityService) UserForSession(ctx context.Context, sess *model.Session) (*model.User, error) {
	u, err := s.users.GetUserByUsername(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}
