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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/jackc/pgx/v5"
)

const tenantColumns = `
	id, name, slug, document, email, system_type, status, plan,
	trial_ends_at, subscription_ends_at, single_tenant_url,
	monthly_payment_day, billing_day_configured, last_payment_date,
	extension_count, requests, COALESCE(registration_token, ''), version,
	created_at, updated_at`

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// UpsertPending inserts a pre-registration or overwrites the pending row
// holding the same document. The conflict clause only fires while the row is
// still pending, so a verified document yields no row.
func (r *TenantRepository) UpsertPending(ctx context.Context, t *tenant.Tenant) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	now := time.Now().UTC()
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO tenants (
			id, name, slug, document, email, system_type, status, plan,
			trial_ends_at, monthly_payment_day, registration_token,
			requests, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '[]'::jsonb, 1, $12, $12)
		ON CONFLICT (document) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			email = EXCLUDED.email,
			system_type = EXCLUDED.system_type,
			trial_ends_at = EXCLUDED.trial_ends_at,
			registration_token = EXCLUDED.registration_token,
			version = tenants.version + 1,
			updated_at = EXCLUDED.updated_at
		WHERE tenants.status = 'pending_verification'
		RETURNING id, version, created_at
	`,
		t.ID, t.Name, t.Slug, t.Document, t.Email, string(t.SystemType), string(t.Status), string(t.Plan),
		t.TrialEndsAt, t.MonthlyPaymentDay, nullable(t.RegistrationToken), now,
	).Scan(&t.ID, &t.Version, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return tenant.ErrTenantConflict
		}
		return fmt.Errorf("failed to upsert pending tenant: %w", err)
	}
	t.UpdatedAt = now
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return r.queryOne(ctx, `SELECT`+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

// GetBySlug retrieves a tenant by its web address
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return r.queryOne(ctx, `SELECT`+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

// FindVerified returns a non-pending tenant holding document or email
func (r *TenantRepository) FindVerified(ctx context.Context, document, email string) (*tenant.Tenant, error) {
	return r.queryOne(ctx, `SELECT`+tenantColumns+` FROM tenants
		WHERE status <> 'pending_verification' AND (document = $1 OR email = $2)
		LIMIT 1`, document, email)
}

// GetByRegistrationToken retrieves the tenant a registration link points to
func (r *TenantRepository) GetByRegistrationToken(ctx context.Context, token string) (*tenant.Tenant, error) {
	if token == "" {
		return nil, tenant.ErrTenantNotFound
	}
	return r.queryOne(ctx, `SELECT`+tenantColumns+` FROM tenants WHERE registration_token = $1`, token)
}

// GetByReference finds the tenant whose ledger holds ref, as a current or a
// superseded reference code. Both lookups use the GIN index on requests.
func (r *TenantRepository) GetByReference(ctx context.Context, ref string) (*tenant.Tenant, error) {
	if ref == "" {
		return nil, tenant.ErrTenantNotFound
	}
	return r.queryOne(ctx, `SELECT`+tenantColumns+` FROM tenants
		WHERE requests @> jsonb_build_array(jsonb_build_object('reference_code', $1::text))
		   OR requests @> jsonb_build_array(jsonb_build_object('superseded_references', jsonb_build_array($1::text)))
		LIMIT 1`, ref)
}

// Update writes t when the stored version still equals t.Version and bumps
// the version on success.
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	requests, err := t.Requests.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode requests: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET
			name = $3,
			slug = $4,
			email = $5,
			system_type = $6,
			status = $7,
			plan = $8,
			trial_ends_at = $9,
			subscription_ends_at = $10,
			single_tenant_url = $11,
			monthly_payment_day = $12,
			billing_day_configured = $13,
			last_payment_date = $14,
			extension_count = $15,
			requests = $16,
			registration_token = $17,
			version = version + 1,
			updated_at = $18
		WHERE id = $1 AND version = $2
	`,
		t.ID, t.Version, t.Name, t.Slug, t.Email, string(t.SystemType), string(t.Status), string(t.Plan),
		t.TrialEndsAt, t.SubscriptionEndsAt, t.SingleTenantURL, t.MonthlyPaymentDay, t.BillingDayConfigured,
		t.LastPaymentDate, t.ExtensionCount, requests, nullable(t.RegistrationToken), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return tenant.ErrTenantConflict
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check tenant: %w", err)
		}
		if !exists {
			return tenant.ErrTenantNotFound
		}
		return tenant.ErrVersionConflict
	}

	t.Version++
	t.UpdatedAt = now
	return nil
}

// List returns tenants, newest first
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	return r.queryMany(ctx, `SELECT`+tenantColumns+` FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}

// ListTrialsEndedBefore returns trial tenants whose trial ended before cutoff
func (r *TenantRepository) ListTrialsEndedBefore(ctx context.Context, cutoff time.Time) ([]*tenant.Tenant, error) {
	return r.queryMany(ctx, `SELECT`+tenantColumns+` FROM tenants
		WHERE status = 'trial' AND trial_ends_at < $1
		ORDER BY trial_ends_at`, cutoff)
}

func (r *TenantRepository) queryOne(ctx context.Context, query string, args ...any) (*tenant.Tenant, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	t, err := scanTenant(r.db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) queryMany(ctx context.Context, query string, args ...any) ([]*tenant.Tenant, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	out := []*tenant.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var (
		t                        tenant.Tenant
		systemType, status, plan string
		requests                 []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Document, &t.Email, &systemType, &status, &plan,
		&t.TrialEndsAt, &t.SubscriptionEndsAt, &t.SingleTenantURL,
		&t.MonthlyPaymentDay, &t.BillingDayConfigured, &t.LastPaymentDate,
		&t.ExtensionCount, &requests, &t.RegistrationToken, &t.Version,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SystemType = tenant.SystemType(systemType)
	t.Status = tenant.Status(status)
	t.Plan = tenant.Plan(plan)
	if len(requests) > 0 {
		if err := t.Requests.UnmarshalJSON(requests); err != nil {
			return nil, fmt.Errorf("failed to decode requests of tenant %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
