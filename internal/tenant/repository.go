package tenant

import (
	"context"
	"time"
)

// Repository defines the interface for tenant storage.
//
// Update is a compare-and-swap on Version: it fails with ErrVersionConflict
// when the stored record changed since t was read, and bumps t.Version on
// success.
type Repository interface {
	// UpsertPending creates a pre-registration or overwrites the pending
	// record holding the same document. Fails with ErrTenantConflict when the
	// document belongs to a verified tenant or the slug is taken.
	UpsertPending(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	// FindVerified returns a non-pending tenant holding document or email.
	FindVerified(ctx context.Context, document, email string) (*Tenant, error)
	GetByRegistrationToken(ctx context.Context, token string) (*Tenant, error)
	// GetByReference finds the tenant owning a request reference code,
	// current or superseded.
	GetByReference(ctx context.Context, ref string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
	ListTrialsEndedBefore(ctx context.Context, cutoff time.Time) ([]*Tenant, error)
}

// maxUpdateAttempts bounds optimistic retries on version conflicts.
const maxUpdateAttempts = 3

// Mutate reloads the tenant and applies fn until the write lands or
// attempts run out. fn must be safe to re-run on a fresh copy.
func Mutate(ctx context.Context, repo Repository, id string, fn func(t *Tenant) error) (*Tenant, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		t, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(t); err != nil {
			return nil, err
		}
		err = repo.Update(ctx, t)
		if err == nil {
			return t, nil
		}
		if !isVersionConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
