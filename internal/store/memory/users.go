package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fluxoclean/controlplane/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*identity.User
}

// NewUserRepository creates an empty user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*identity.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return identity.ErrUserAlreadyExists
		}
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool { return u.Email == email })
}

func (r *UserRepository) GetOwner(ctx context.Context, tenantID string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool { return u.TenantID == tenantID && u.Role == identity.RoleOwner })
}

func (r *UserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*identity.User{}
	for _, u := range r.users {
		if u.TenantID == tenantID {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return identity.ErrUserNotFound
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.TenantID != tenantID {
		return identity.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*identity.User, error) {
	return r.find(func(u *identity.User) bool {
		return tokenHash != "" && u.ResetTokenHash == tokenHash &&
			u.ResetPasswordExpires != nil && u.ResetPasswordExpires.After(now)
	})
}

func (r *UserRepository) find(match func(*identity.User) bool) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, identity.ErrUserNotFound
}
