package memory

import (
	"context"
	"testing"

	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates optimistic concurrency on tenant writes.
// Scope: Unit Test
// Expected: The second writer holding a stale version gets ErrVersionConflict and the first write survives.
// Test Case ID: MEM-01
func TestTenantRepository_UpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewTenantRepository()
	repo.Put(&tenant.Tenant{ID: "t1", Slug: "acme", Document: "123", Status: tenant.StatusTrial, Version: 1})

	a, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)

	a.ExtensionCount = 1
	require.NoError(t, repo.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.ExtensionCount = 2
	assert.ErrorIs(t, repo.Update(ctx, b), tenant.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ExtensionCount)
}

// TestPurpose: Validates that pre-registration upserts are keyed by document and never overwrite a verified tenant.
// Scope: Unit Test
// Expected: A second pending upsert keeps the ID; an upsert over an active tenant is a conflict; slug clashes are conflicts.
// Test Case ID: MEM-02
func TestTenantRepository_UpsertPending(t *testing.T) {
	ctx := context.Background()
	repo := NewTenantRepository()

	first := &tenant.Tenant{ID: "p1", Slug: "acme", Document: "123", Email: "a@acme.io", Status: tenant.StatusPendingVerification}
	require.NoError(t, repo.UpsertPending(ctx, first))

	again := &tenant.Tenant{ID: "p2", Slug: "acme-co", Document: "123", Email: "b@acme.io", Status: tenant.StatusPendingVerification}
	require.NoError(t, repo.UpsertPending(ctx, again))
	assert.Equal(t, "p1", again.ID)

	stored, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "acme-co", stored.Slug)

	repo.Put(&tenant.Tenant{ID: "v1", Slug: "beta", Document: "999", Status: tenant.StatusActive})
	err = repo.UpsertPending(ctx, &tenant.Tenant{ID: "p3", Slug: "gamma", Document: "999", Status: tenant.StatusPendingVerification})
	assert.ErrorIs(t, err, tenant.ErrTenantConflict)

	err = repo.UpsertPending(ctx, &tenant.Tenant{ID: "p4", Slug: "beta", Document: "555", Status: tenant.StatusPendingVerification})
	assert.ErrorIs(t, err, tenant.ErrTenantConflict)
}

func TestTenantRepository_GetByReference(t *testing.T) {
	ctx := context.Background()
	repo := NewTenantRepository()
	up := &tenant.UpgradeRequest{SupersededReferences: []string{"MIGRATE-20260101-OLD00001"}}
	up.Status = tenant.RequestWaitingPayment
	up.ReferenceCode = "MIGRATE-20260102-NEW00001"
	up.Amount = decimal.NewFromInt(197)
	repo.Put(&tenant.Tenant{ID: "t1", Slug: "acme", Document: "1", Requests: tenant.Ledger{up}})

	got, err := repo.GetByReference(ctx, "MIGRATE-20260101-OLD00001")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = repo.GetByReference(ctx, "TRIAL-20260101-NOPE0000")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}
