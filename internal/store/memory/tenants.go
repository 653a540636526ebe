// Copyright 2026 The FluxoClean Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memory provides process-local repositories for development
// (STORE=memory) and tests. Records are copied on every read and write so
// callers never share state with the store.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/fluxoclean/controlplane/internal/tenant"
)

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]*tenant.Tenant
}

// NewTenantRepository creates an empty tenant repository
func NewTenantRepository() *TenantRepository {
	return &TenantRepository{tenants: make(map[string]*tenant.Tenant)}
}

// UpsertPending creates or overwrites a pending pre-registration
func (r *TenantRepository) UpsertPending(ctx context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *tenant.Tenant
	for _, stored := range r.tenants {
		if stored.Document == t.Document {
			existing = stored
			break
		}
	}
	if existing != nil && existing.Status != tenant.StatusPendingVerification {
		return tenant.ErrTenantConflict
	}
	for _, stored := range r.tenants {
		if stored.Slug == t.Slug && (existing == nil || stored.ID != existing.ID) {
			return tenant.ErrTenantConflict
		}
	}

	now := time.Now().UTC()
	if existing != nil {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
		t.Version = existing.Version + 1
	} else {
		t.CreatedAt = now
		t.Version = 1
	}
	t.UpdatedAt = now
	r.tenants[t.ID] = clone(t)
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return r.find(func(t *tenant.Tenant) bool { return t.ID == id })
}

// GetBySlug retrieves a tenant by slug
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return r.find(func(t *tenant.Tenant) bool { return t.Slug == slug })
}

// FindVerified returns a non-pending tenant holding document or email
func (r *TenantRepository) FindVerified(ctx context.Context, document, email string) (*tenant.Tenant, error) {
	return r.find(func(t *tenant.Tenant) bool {
		return t.Status != tenant.StatusPendingVerification && (t.Document == document || t.Email == email)
	})
}

// GetByRegistrationToken retrieves the pending tenant holding token
func (r *TenantRepository) GetByRegistrationToken(ctx context.Context, token string) (*tenant.Tenant, error) {
	if token == "" {
		return nil, tenant.ErrTenantNotFound
	}
	return r.find(func(t *tenant.Tenant) bool {
		return t.Status == tenant.StatusPendingVerification && t.RegistrationToken == token
	})
}

// GetByReference finds the tenant owning a request reference code
func (r *TenantRepository) GetByReference(ctx context.Context, ref string) (*tenant.Tenant, error) {
	return r.find(func(t *tenant.Tenant) bool { return t.Requests.IndexOfReference(ref) >= 0 })
}

// Update stores t when its version matches the stored one
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tenants[t.ID]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	if stored.Version != t.Version {
		return tenant.ErrVersionConflict
	}
	for _, other := range r.tenants {
		if other.ID != t.ID && (other.Slug == t.Slug || other.Document == t.Document) {
			return tenant.ErrTenantConflict
		}
	}

	t.Version++
	t.UpdatedAt = time.Now().UTC()
	r.tenants[t.ID] = clone(t)
	return nil
}

// List lists tenants, newest first
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	r.mu.RLock()
	all := make([]*tenant.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		all = append(all, clone(t))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []*tenant.Tenant{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ListTrialsEndedBefore lists trial tenants whose trial ended before cutoff
func (r *TenantRepository) ListTrialsEndedBefore(ctx context.Context, cutoff time.Time) ([]*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*tenant.Tenant
	for _, t := range r.tenants {
		if t.Status == tenant.StatusTrial && t.TrialEndsAt.Before(cutoff) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

// Put stores t as-is, bypassing version checks. Intended for seeding.
func (r *TenantRepository) Put(t *tenant.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.tenants[t.ID] = clone(t)
}

func (r *TenantRepository) find(match func(*tenant.Tenant) bool) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if match(t) {
			return clone(t), nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func clone(t *tenant.Tenant) *tenant.Tenant {
	c := *t
	if t.SubscriptionEndsAt != nil {
		v := *t.SubscriptionEndsAt
		c.SubscriptionEndsAt = &v
	}
	if t.LastPaymentDate != nil {
		v := *t.LastPaymentDate
		c.LastPaymentDate = &v
	}
	c.Requests = cloneLedger(t.Requests)
	return &c
}

func cloneLedger(l tenant.Ledger) tenant.Ledger {
	raw, err := json.Marshal(l)
	if err != nil {
		panic("memory: ledger is not serializable: " + err.Error())
	}
	var out tenant.Ledger
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("memory: ledger round trip failed: " + err.Error())
	}
	return out
}
