// Package memory provides map-backed repositories with the same contracts as
// the PostgreSQL ones, including email uniqueness.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/proppicks/auth-gateway/models"
	"github.com/proppicks/auth-gateway/repositories"
)

// UserStore implements repositories.UserRepository
type UserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
	writes  int
}

// NewUserStore creates an empty store
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Create inserts a copy of user, enforcing email uniqueness atomically.
func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return repositories.ErrDuplicate
	}
	cp := *user
	cp.Email = email
	s.byID[cp.ID] = &cp
	s.byEmail[email] = cp.ID
	s.writes++
	return nil
}

// GetByID returns a copy of the user
func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByIDForUpdate is GetByID; the store has no row locks
func (s *UserStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.GetByID(ctx, id)
}

// GetByEmail returns a copy of the user with the normalized email
func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// List returns users newest first
func (s *UserStore) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	s.mu.RLock()
	all := make([]*models.User, 0, len(s.byID))
	for _, u := range s.byID {
		cp := *u
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

// Update replaces name, role and active flag
func (s *UserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Name = user.Name
	u.Role = user.Role
	u.Active = user.Active
	u.UpdatedAt = user.UpdatedAt
	s.writes++
	return nil
}

// Writes returns how many mutations the store has accepted
func (s *UserStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// AuditStore implements repositories.AuditRepository
type AuditStore struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

// NewAuditStore creates an empty audit store
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Insert appends an entry
func (s *AuditStore) Insert(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	s.logs = append(s.logs, &cp)
	return nil
}

// List returns entries newest first
func (s *AuditStore) List(_ context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return page(s.snapshot(func(*models.AuditLog) bool { return true }), limit, offset), nil
}

// ListByUserID returns a user's entries newest first
func (s *AuditStore) ListByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	return page(s.snapshot(func(l *models.AuditLog) bool {
		return l.UserID != nil && *l.UserID == userID
	}), limit, offset), nil
}

func (s *AuditStore) snapshot(keep func(*models.AuditLog) bool) []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.AuditLog, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		if keep(s.logs[i]) {
			cp := *s.logs[i]
			out = append(out, &cp)
		}
	}
	return out
}

// TxManager runs callbacks directly; the stores are individually atomic.
type TxManager struct{}

// Begin returns a transaction whose Commit and Rollback do nothing
func (TxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return noopTx{ctx: ctx}, nil
}

// InTransaction calls fn with a no-op transaction
func (m TxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, noopTx{ctx: ctx})
}

type noopTx struct {
	ctx context.Context
}

func (noopTx) Commit() error { return nil }

func (noopTx) Rollback() error { return nil }

func (t noopTx) Context() context.Context { return t.ctx }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
