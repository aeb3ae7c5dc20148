// Package repository defines the durable store contracts consumed by the
// services, plus the sentinel errors every implementation must return. Two
// implementations exist: mysql for deployments and memory for tests and
// single-process development.
package repository

import (
	"context"

	"github.com/showdeck/access/internal/model"
)

// UserStore persists identity records. Usernames are normalized to lowercase
// before storage so lookups are case-insensitive everywhere.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateUser writes the record back using compare-and-swap on Version
	// and bumps the version on success.
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role) ([]*model.User, error)
}

// SessionStore persists sessions keyed by session id.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// DeleteSessionsForUser removes every session owned by the username.
	DeleteSessionsForUser(ctx context.Context, username string) error
	// ReplaceSessionsForUser atomically removes every session owned by the
	// username and installs the new one. No interleaving of two concurrent
	// replacements may ever leave the username with more than one session.
	ReplaceSessionsForUser(ctx context.Context, username string, s *model.Session) error
}

// RequestStore persists token requests. UpdateRequest uses compare-and-swap
// on Version, which is what makes the one-way status transition race-safe.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *model.TokenRequest) error
	GetRequest(ctx context.Context, id string) (*model.TokenRequest, error)
	UpdateRequest(ctx context.Context, r *model.TokenRequest) error
	ListRequests(ctx context.Context, status model.RequestStatus) ([]*model.TokenRequest, error)
}

// AuditStore appends immutable audit entries. There is deliberately no
// update or delete.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *model.AuditLogEntry) error
	ListAudit(ctx context.Context, limit int) ([]*model.AuditLogEntry, error)
}

// DeliveryStore appends notification outcomes.
type DeliveryStore interface {
	AppendDelivery(ctx context.Context, d *model.DeliveryLog) error
	ListDeliveryForOwner(ctx context.Context, ownerID string) ([]*model.DeliveryLog, error)
}

// BootstrapStore persists the singleton bootstrap marker. CreateBootstrap is
// conditional: it must fail with ErrBootstrapExists when a marker is already
// present, even under concurrent writers.
type BootstrapStore interface {
	GetBootstrap(ctx context.Context) (*model.Bootstrap, error)
	CreateBootstrap(ctx context.Context, b *model.Bootstrap) error
	DeleteBootstrap(ctx context.Context) error
}

// Store aggregates every collection; both implementations satisfy it.
type Store interface {
	UserStore
	SessionStore
	RequestStore
	AuditStore
	DeliveryStore
	BootstrapStore
}
