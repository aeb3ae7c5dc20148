package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/showdeck/access/internal/audit"
	"github.com/showdeck/access/internal/limiter"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// env wires the services against the in-memory store with a fake clock and
// generous rate budgets. Tests that exercise budgets build their own limiter.
type env struct {
	store    *memory.Store
	clock    *fakeClock
	rec      *audit.Recorder
	identity *IdentityService
	admin    *AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	clk := newClock()
	rec := audit.NewRecorder(store).WithClock(clk.Now)
	actors := limiter.NewSlidingWindow(1000, time.Minute).WithClock(clk.Now)
	return &env{
		store:    store,
		clock:    clk,
		rec:      rec,
		identity: NewIdentityService(store, store, store, rec).WithClock(clk.Now),
		admin:    NewAdminService(store, store, actors, rec).WithClock(clk.Now),
	}
}

// bootstrapMaster runs the one-time bootstrap and returns the raw token and
// the master admin record.
func (e *env) bootstrapMaster(t *testing.T) (string, *model.User) {
	t.Helper()
	ctx := context.Background()
	raw, err := e.identity.Bootstrap(ctx, "root")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	master, err := e.store.GetUserByUsername(ctx, "root")
	if err != nil {
		t.Fatalf("master lookup failed: %v", err)
	}
	return raw, master
}

// createActor creates a principal through the admin path acting as creator.
func (e *env) createActor(t *testing.T, creator *model.User, role model.Role, username string) (string, *model.User) {
	t.Helper()
	raw, u, err := e.admin.CreateUser(context.Background(), creator, CreateUserInput{
		Username: username,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create %s %q failed: %v", role, username, err)
	}
	return raw, u
}

// auditActions returns the recorded action tags, newest first.
func (e *env) auditActions(t *testing.T) []string {
	t.Helper()
	entries, err := e.store.ListAudit(context.Background(), 100)
	if err != nil {
		t.Fatalf("list audit failed: %v", err)
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Action)
	}
	return out
}

func hasAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
