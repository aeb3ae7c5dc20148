// Package memory is an in-memory Store used by tests and by single-process
// development runs. All mutations copy records on the way in and out so
// callers never share memory with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
)

type Store struct {
	mu        sync.RWMutex
	users     map[string]*model.User    // id -> user
	sessions  map[string]*model.Session // session id -> session
	requests  map[string]*model.TokenRequest
	audit     []*model.AuditLogEntry
	delivery  []*model.DeliveryLog
	bootstrap *model.Bootstrap
}

func New() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		requests: make(map[string]*model.TokenRequest),
	}
}

// ----- users -----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uname := strings.ToLower(u.Username)
	for _, ex := range s.users {
		if ex.Username == uname {
			return repository.ErrUsernameExists
		}
	}
	cp := *u
	cp.Username = uname
	cp.Version = 1
	s.users[cp.ID] = &cp
	u.Username = uname
	u.Version = 1
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uname := strings.ToLower(username)
	for _, u := range s.users {
		if u.Username == uname {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != u.Version {
		return repository.ErrVersionConflict
	}
	cp := *u
	cp.Username = strings.ToLower(cp.Username)
	cp.Version = cur.Version + 1
	s.users[cp.ID] = &cp
	u.Version = cp.Version
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListUsersByRole(_ context.Context, role model.Role) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.User
	for _, u := range s.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- sessions -----

func (s *Store) CreateSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.Username = strings.ToLower(cp.Username)
	s.sessions[cp.ID] = &cp
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteSessionsForUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uname := strings.ToLower(username)
	for id, sess := range s.sessions {
		if sess.Username == uname {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *Store) ReplaceSessionsForUser(_ context.Context, username string, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uname := strings.ToLower(username)
	for id, ex := range s.sessions {
		if ex.Username == uname {
			delete(s.sessions, id)
		}
	}
	cp := *sess
	cp.Username = uname
	s.sessions[cp.ID] = &cp
	return nil
}

// ----- token requests -----

func (s *Store) CreateRequest(_ context.Context, r *model.TokenRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.Version = 1
	s.requests[cp.ID] = &cp
	r.Version = 1
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*model.TokenRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) UpdateRequest(_ context.Context, r *model.TokenRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != r.Version {
		return repository.ErrVersionConflict
	}
	cp := *r
	cp.Version = cur.Version + 1
	s.requests[cp.ID] = &cp
	r.Version = cp.Version
	return nil
}

func (s *Store) ListRequests(_ context.Context, status model.RequestStatus) ([]*model.TokenRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.TokenRequest
	for _, r := range s.requests {
		if status != "" && r.Status != status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- audit -----

func (s *Store) AppendAudit(_ context.Context, e *model.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *Store) ListAudit(_ context.Context, limit int) ([]*model.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.audit)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*model.AuditLogEntry, 0, limit)
	// most recent first
	for i := n - 1; i >= n-limit; i-- {
		cp := *s.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ----- delivery log -----

func (s *Store) AppendDelivery(_ context.Context, d *model.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.delivery = append(s.delivery, &cp)
	return nil
}

func (s *Store) ListDeliveryForOwner(_ context.Context, ownerID string) ([]*model.DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.DeliveryLog
	for _, d := range s.delivery {
		if d.OwnerID == ownerID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ----- bootstrap marker -----

func (s *Store) GetBootstrap(_ context.Context) (*model.Bootstrap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bootstrap == nil {
		return nil, repository.ErrNotFound
	}
	cp := *s.bootstrap
	return &cp, nil
}

func (s *Store) CreateBootstrap(_ context.Context, b *model.Bootstrap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bootstrap != nil {
		return repository.ErrBootstrapExists
	}
	cp := *b
	s.bootstrap = &cp
	return nil
}

func (s *Store) DeleteBootstrap(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootstrap = nil
	return nil
}

var _ repository.Store = (*Store)(nil)
