package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/store/memory"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that a payment is applied exactly once.
// Scope: Unit Test
// Security: Duplicate gateway notifications must not grant extra access time
// Expected: The first call applies the extension; replays report already_processed and leave the tenant unchanged.
// Test Case ID: BIL-05
func TestReconciler_ApplyPayment_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", func(t *tenant.Tenant) {
		t.Requests = tenant.Ledger{extension("TRIAL-20260501-AAAAAAAA", tenant.RequestPending)}
	})
	r := newReconciler(repo, clock.NewFake(start))

	res, err := r.ApplyPayment(ctx, "TRIAL-20260501-AAAAAAAA", decimal.NewFromInt(97))
	require.NoError(t, err)
	assert.Equal(t, tenant.OutcomeApplied, res.Outcome)
	assert.True(t, res.Applied)
	assert.Equal(t, "t1", res.TenantID)

	after, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, after.ExtensionCount)
	assert.Equal(t, start.Add(24*time.Hour).AddDate(0, 0, 30), after.TrialEndsAt)

	for i := 0; i < 3; i++ {
		res, err = r.ApplyPayment(ctx, "TRIAL-20260501-AAAAAAAA", decimal.NewFromInt(97))
		require.NoError(t, err)
		assert.Equal(t, tenant.OutcomeAlreadyProcessed, res.Outcome)
		assert.False(t, res.Applied)
	}

	again, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.ExtensionCount)
	assert.Equal(t, after.TrialEndsAt, again.TrialEndsAt)
	assert.Equal(t, after.Version, again.Version)
}

// TestPurpose: Validates the outcomes for unknown and rejected references.
// Scope: Unit Test
// Expected: Unknown references yield not_found, rejected requests yield rejected; neither is an error or a write.
// Test Case ID: BIL-06
func TestReconciler_ApplyPayment_NotApplicable(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", func(t *tenant.Tenant) {
		t.Requests = tenant.Ledger{extension("TRIAL-20260501-BBBBBBBB", tenant.RequestRejected)}
	})
	r := newReconciler(repo, clock.NewFake(start))

	res, err := r.ApplyPayment(ctx, "MTH-20260501-00000000", decimal.NewFromInt(197))
	require.NoError(t, err)
	assert.Equal(t, tenant.OutcomeNotFound, res.Outcome)

	res, err = r.ApplyPayment(ctx, "", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, tenant.OutcomeNotFound, res.Outcome)

	res, err = r.ApplyPayment(ctx, "TRIAL-20260501-BBBBBBBB", decimal.NewFromInt(97))
	require.NoError(t, err)
	assert.Equal(t, tenant.OutcomeRejected, res.Outcome)

	after, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.Version)
	assert.Equal(t, 0, after.ExtensionCount)
}

// TestPurpose: Validates settlement under a concurrent ledger write.
// Scope: Unit Test
// Security: A lost update would drop either the payment or the concurrent change
// Expected: The reconciler re-reads and applies on a later attempt; running out of attempts is an error.
// Test Case ID: BIL-07
func TestReconciler_ApplyPayment_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("retry succeeds", func(t *testing.T) {
		base := memory.NewTenantRepository()
		seed(base, "t1", func(t *tenant.Tenant) {
			t.Requests = tenant.Ledger{upgrade("UPG-PROV-20260501-CCCCCCCC", tenant.RequestWaitingPayment)}
		})
		repo := &conflictingRepo{TenantRepository: base, conflicts: 2}
		r := newReconciler(repo, clock.NewFake(start))

		res, err := r.ApplyPayment(ctx, "UPG-PROV-20260501-CCCCCCCC", decimal.NewFromInt(197))
		require.NoError(t, err)
		assert.Equal(t, tenant.OutcomeApplied, res.Outcome)

		after, err := base.GetByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, tenant.PlanSingleTenant, after.Plan)
		assert.Equal(t, tenant.StatusActive, after.Status)
		require.NotNil(t, after.SubscriptionEndsAt)
		assert.Equal(t, start.AddDate(0, 0, 30), *after.SubscriptionEndsAt)
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		base := memory.NewTenantRepository()
		seed(base, "t1", func(t *tenant.Tenant) {
			t.Requests = tenant.Ledger{extension("TRIAL-20260501-DDDDDDDD", tenant.RequestPending)}
		})
		repo := &conflictingRepo{TenantRepository: base, conflicts: 10}
		r := newReconciler(repo, clock.NewFake(start))

		_, err := r.ApplyPayment(ctx, "TRIAL-20260501-DDDDDDDD", decimal.NewFromInt(97))
		require.ErrorIs(t, err, tenant.ErrVersionConflict)

		after, err := base.GetByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 0, after.ExtensionCount)
	})
}

// TestPurpose: Validates pruning of leftover pending requests of the settled type.
// Scope: Unit Test
// Expected: After one extension settles, no other extension stays pending; unrelated requests are kept.
// Test Case ID: BIL-08
func TestReconciler_ApplyPayment_PrunesPending(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", func(t *tenant.Tenant) {
		t.Requests = tenant.Ledger{
			extension("TRIAL-20260501-EEEEEEE1", tenant.RequestPending),
			upgrade("UPG-PROV-20260501-EEEEEEE2", tenant.RequestPending),
			extension("TRIAL-20260501-EEEEEEE3", tenant.RequestPending),
		}
	})
	r := newReconciler(repo, clock.NewFake(start))

	_, err := r.ApplyPayment(ctx, "TRIAL-20260501-EEEEEEE3", decimal.NewFromInt(97))
	require.NoError(t, err)

	after, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, after.Requests, 2)
	assert.Equal(t, tenant.RequestUpgrade, after.Requests[0].Type())
	assert.Equal(t, "TRIAL-20260501-EEEEEEE3", tenant.Base(after.Requests[1]).ReferenceCode)
	assert.Equal(t, tenant.RequestApproved, tenant.Base(after.Requests[1]).Status)
	assert.Equal(t, -1, after.Requests.IndexOf(tenant.RequestExtension, tenant.RequestPending))
}

// TestPurpose: Validates that a payment on a superseded migration reference still settles the upgrade.
// Scope: Unit Test
// Expected: Paying the old reference applies the upgrade and a replay on the new one is already_processed.
// Test Case ID: BIL-09
func TestReconciler_ApplyPayment_SupersededReference(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	up := upgrade("MIGRATE-20260502-FFFFFFF2", tenant.RequestWaitingPayment)
	up.SupersededReferences = []string{"UPG-PROV-20260501-FFFFFFF1"}
	seed(repo, "t1", func(t *tenant.Tenant) { t.Requests = tenant.Ledger{up} })
	r := newReconciler(repo, clock.NewFake(start))

	res, err := r.ApplyPayment(ctx, "UPG-PROV-20260501-FFFFFFF1", decimal.NewFromInt(197))
	require.NoError(t, err)
	assert.Equal(t, tenant.OutcomeApplied, res.Outcome)

	res, err = r.ApplyPayment(ctx, "MIGRATE-20260502-FFFFFFF2", decimal.NewFromInt(197))
	require.NoError(t, err)
	assert.Equal(t, tenant.OutcomeAlreadyProcessed, res.Outcome)
}
