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
	"github.com/showdeck/access/internal/limiter"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
	"github.com/showdeck/access/internal/token"
)

// AdminService performs user administration under the three-tier authority
// order. Every mutating call consumes one unit of the actor's rate-limit
// budget before touching any state.
type AdminService struct {
	users    repository.UserStore
	sessions repository.SessionStore
	actors   limiter.Limiter
	audit    *audit.Recorder
	now      func() time.Time
}

func NewAdminService(users repository.UserStore, sessions repository.SessionStore, actors limiter.Limiter, rec *audit.Recorder) *AdminService {
	return &AdminService{users: users, sessions: sessions, actors: actors, audit: rec, now: time.Now}
}

// WithClock replaces the time source for deterministic tests.
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

// CreateUserInput is the data an administrator supplies for a new principal.
type CreateUserInput struct {
	Username        string
	Role            model.Role
	Email           string
	Phone           string
	Name            string
	SocialHandle    string
	Source          string
	RequestID       string
	DurationMinutes int // 0 means the token never expires
}

// authorize applies the uniform mutation rules: only admins act at all, no
// one touches the master admin, and only the master admin touches admins.
func authorize(actor *model.User, targetRole model.Role) error {
	if actor == nil || (actor.Role != model.RoleMasterAdmin && actor.Role != model.RoleAdmin) {
		return apperr.ErrForbidden
	}
	if targetRole == model.RoleMasterAdmin {
		return apperr.ErrForbidden
	}
	if targetRole == model.RoleAdmin && actor.Role != model.RoleMasterAdmin {
		return apperr.ErrForbidden
	}
	return nil
}

func prefixFor(role model.Role) string {
	switch role {
	case model.RoleMasterAdmin:
		return token.PrefixMaster
	case model.RoleAdmin:
		return token.PrefixAdmin
	default:
		return token.PrefixProducer
	}
}

// CreateUser creates an ADMIN or PRODUCER principal and returns the one-time
// raw token. Creating another MASTER_ADMIN is never allowed.
func (s *AdminService) CreateUser(ctx context.Context, actor *model.User, in CreateUserInput) (string, *model.User, error) {
	if err := authorize(actor, in.Role); err != nil {
		return "", nil, err
	}
	if in.Role != model.RoleAdmin && in.Role != model.RoleProducer {
		return "", nil, apperr.ErrForbidden
	}
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" {
		return "", nil, fmt.Errorf("%w: username required", apperr.ErrValidation)
	}
	if err := s.actors.Allow(ctx, actor.ID); err != nil {
		return "", nil, err
	}

	raw, err := token.Issue(prefixFor(in.Role))
	if err != nil {
		return "", nil, err
	}
	now := s.now().UTC()
	var expires *time.Time
	if in.DurationMinutes > 0 {
		t := now.Add(time.Duration(in.DurationMinutes) * time.Minute)
		expires = &t
	}
	source := in.Source
	if source == "" {
		source = "ADMIN"
	}
	u := &model.User{
		ID:          uuid.NewString(),
		Username:    username,
		TokenDigest: token.Digest(raw),
		Role:        in.Role,
		Status:      model.StatusActive,
		Email:       in.Email,
		Phone:       in.Phone,
		Profile: model.Profile{
			Name:         in.Name,
			SocialHandle: in.SocialHandle,
			Source:       source,
			RequestID:    in.RequestID,
		},
		ExpiresAt: expires,
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

	action := model.AuditUserCreated
	if in.Role == model.RoleAdmin {
		action = model.AuditAdminCreated
	}
	s.audit.Record(ctx, actor.ID, actor.Role, u.ID, action,
		fmt.Sprintf("created %s %q", strings.ToLower(string(in.Role)), username), nil)
	return raw, u, nil
}

// RefreshToken rotates the target's bearer token and kills its sessions so
// the holder must log in again with the new token.
func (s *AdminService) RefreshToken(ctx context.Context, actor *model.User, targetUsername string) (string, error) {
	target, err := s.users.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return "", err
	}
	if err := authorize(actor, target.Role); err != nil {
		return "", err
	}
	if err := s.actors.Allow(ctx, actor.ID); err != nil {
		return "", err
	}

	raw, err := token.Issue(prefixFor(target.Role))
	if err != nil {
		return "", err
	}
	target.TokenDigest = token.Digest(raw)
	target.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, target); err != nil {
		return "", err
	}
	if err := s.sessions.DeleteSessionsForUser(ctx, target.Username); err != nil {
		return "", err
	}
	s.audit.Record(ctx, actor.ID, actor.Role, target.ID, model.AuditTokenRefreshed,
		fmt.Sprintf("rotated token for %q", target.Username), nil)
	return raw, nil
}

// ToggleAccess revokes or restores the target. Revocation also invalidates
// every session the target holds.
func (s *AdminService) ToggleAccess(ctx context.Context, actor *model.User, targetUsername string, revoke bool) error {
	target, err := s.users.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return err
	}
	if err := authorize(actor, target.Role); err != nil {
		return err
	}
	if err := s.actors.Allow(ctx, actor.ID); err != nil {
		return err
	}

	if revoke {
		target.Status = model.StatusRevoked
	} else {
		target.Status = model.StatusActive
	}
	target.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, target); err != nil {
		return err
	}
	action := model.AuditAccessGranted
	if revoke {
		action = model.AuditAccessRevoked
		if err := s.sessions.DeleteSessionsForUser(ctx, target.Username); err != nil {
			return err
		}
	}
	s.audit.Record(ctx, actor.ID, actor.Role, target.ID, action,
		fmt.Sprintf("access toggled for %q", target.Username), nil)
	return nil
}

// DeleteUser hard-deletes the target and its sessions. Audit entries naming
// the deleted id stay behind as historical facts.
func (s *AdminService) DeleteUser(ctx context.Context, actor *model.User, targetUsername string) error {
	target, err := s.users.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return err
	}
	if err := authorize(actor, target.Role); err != nil {
		return err
	}
	if err := s.actors.Allow(ctx, actor.ID); err != nil {
		return err
	}

	if err := s.sessions.DeleteSessionsForUser(ctx, target.Username); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, target.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor.ID, actor.Role, target.ID, model.AuditUserDeleted,
		fmt.Sprintf("deleted %q", target.Username), nil)
	return nil
}

// ListUsers returns every principal for the console. Requires admin
// authority but mutates nothing, so it does not consume budget.
func (s *AdminService) ListUsers(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if actor == nil || (actor.Role != model.RoleMasterAdmin && actor.Role != model.RoleAdmin) {
		return nil, apperr.ErrForbidden
	}
	return s.users.ListUsers(ctx)
}
