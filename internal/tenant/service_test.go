package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/store/memory"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOwners map[string]*tenant.Owner

func (s stubOwners) OwnerOf(ctx context.Context, tenantID string) (*tenant.Owner, error) {
	if o, ok := s[tenantID]; ok {
		return o, nil
	}
	return nil, tenant.ErrTenantNotFound
}

// conflictingRepo fails the first n updates with a version conflict after
// letting a concurrent writer bump the stored record.
type conflictingRepo struct {
	*memory.TenantRepository
	conflicts int
}

func (r *conflictingRepo) Update(ctx context.Context, t *tenant.Tenant) error {
	if r.conflicts > 0 {
		r.conflicts--
		stored, err := r.TenantRepository.GetByID(ctx, t.ID)
		if err != nil {
			return err
		}
		if err := r.TenantRepository.Update(ctx, stored); err != nil {
			return err
		}
	}
	return r.TenantRepository.Update(ctx, t)
}

var start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func seed(repo *memory.TenantRepository, id string, status tenant.Status, requests ...tenant.Request) {
	repo.Put(&tenant.Tenant{
		ID:          id,
		Name:        "Acme " + id,
		Slug:        "acme-" + id,
		Document:    "doc-" + id,
		Email:       id + "@acme.io",
		Status:      status,
		Plan:        tenant.PlanTrial,
		TrialEndsAt: start.Add(24 * time.Hour),
		Requests:    tenant.Ledger(requests),
		Version:     1,
		CreatedAt:   start,
	})
}

func pendingUpgrade(ref string) *tenant.UpgradeRequest {
	r := &tenant.UpgradeRequest{}
	r.Status = tenant.RequestPending
	r.ReferenceCode = ref
	r.Amount = decimal.NewFromInt(197)
	return r
}

// TestPurpose: Validates administrator upgrade approval end to end through the repository.
// Scope: Unit Test
// Security: Approval survives a concurrent write by retrying on version conflict
// Expected: The upgrade moves to waiting_payment with the dedicated URL stored, and the retry is transparent.
// Test Case ID: TEN-04
func TestService_ApproveRequest(t *testing.T) {
	ctx := context.Background()
	base := memory.NewTenantRepository()
	seed(base, "t1", tenant.StatusTrial, pendingUpgrade("UPG-PROV-20260501-AAAA0001"))
	repo := &conflictingRepo{TenantRepository: base, conflicts: 1}
	svc := tenant.NewService(repo, nil, audit.NopLogger{}, clock.NewFake(start))

	_, err := svc.ApproveRequest(ctx, "operator", "t1", tenant.ApprovalInput{Type: tenant.RequestUpgrade})
	assert.ErrorIs(t, err, tenant.ErrTargetURLRequired)

	got, err := svc.ApproveRequest(ctx, "operator", "t1", tenant.ApprovalInput{
		Type:      tenant.RequestUpgrade,
		TargetURL: "https://acme.fluxoclean.com.br",
	})
	require.NoError(t, err)
	assert.Equal(t, tenant.RequestWaitingPayment, tenant.Base(got.Requests[0]).Status)
	assert.Equal(t, "https://acme.fluxoclean.com.br", got.SingleTenantURL)

	_, err = svc.ApproveRequest(ctx, "operator", "t1", tenant.ApprovalInput{Type: tenant.RequestExtension})
	assert.ErrorIs(t, err, tenant.ErrRequestNotFound)
}

func TestService_RejectRequest(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", tenant.StatusTrial, pendingUpgrade("UPG-PROV-20260501-AAAA0002"))
	svc := tenant.NewService(repo, nil, audit.NopLogger{}, clock.NewFake(start))

	got, err := svc.RejectRequest(ctx, "operator", "t1", tenant.ApprovalInput{ReferenceCode: "UPG-PROV-20260501-AAAA0002"})
	require.NoError(t, err)
	assert.Equal(t, tenant.RequestRejected, tenant.Base(got.Requests[0]).Status)

	_, err = svc.RejectRequest(ctx, "operator", "t1", tenant.ApprovalInput{ReferenceCode: "UPG-PROV-20260501-AAAA0002"})
	assert.ErrorIs(t, err, tenant.ErrIllegalTransition)
}

func TestService_SetStatus(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", tenant.StatusTrial)
	seed(repo, "p1", tenant.StatusPendingVerification)
	svc := tenant.NewService(repo, nil, audit.NopLogger{}, clock.NewFake(start))

	got, err := svc.SetStatus(ctx, "operator", "t1", tenant.StatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusBlocked, got.Status)

	_, err = svc.SetStatus(ctx, "operator", "t1", tenant.Status("paused"))
	assert.ErrorIs(t, err, tenant.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "operator", "p1", tenant.StatusActive)
	assert.ErrorIs(t, err, tenant.ErrIllegalStatus)

	_, err = svc.SetStatus(ctx, "operator", "missing", tenant.StatusActive)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestService_SetBillingDay(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", tenant.StatusActive)
	svc := tenant.NewService(repo, nil, audit.NopLogger{}, clock.NewFake(start))

	_, err := svc.SetBillingDay(ctx, "u1", "t1", 0)
	assert.ErrorIs(t, err, tenant.ErrInvalidPaymentDay)

	got, err := svc.SetBillingDay(ctx, "u1", "t1", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, got.MonthlyPaymentDay)
	assert.True(t, got.BillingDayConfigured)
}

// TestPurpose: Validates the trial expiry sweep.
// Scope: Unit Test
// Expected: Only trials past their end date are expired; active tenants are untouched.
// Test Case ID: TEN-05
func TestService_ExpireTrials(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "overdue", tenant.StatusTrial)
	seed(repo, "paying", tenant.StatusActive)
	clk := clock.NewFake(start)
	svc := tenant.NewService(repo, nil, audit.NopLogger{}, clk)

	n, err := svc.ExpireTrials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clk.Advance(48 * time.Hour)
	n, err = svc.ExpireTrials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	overdue, _ := repo.GetByID(ctx, "overdue")
	assert.Equal(t, tenant.StatusExpired, overdue.Status)
	paying, _ := repo.GetByID(ctx, "paying")
	assert.Equal(t, tenant.StatusActive, paying.Status)
}

func TestService_ListTenants(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTenantRepository()
	seed(repo, "t1", tenant.StatusTrial)
	seed(repo, "p1", tenant.StatusPendingVerification)
	owners := stubOwners{"t1": {ID: "u1", Name: "Ana", Email: "ana@acme.io"}}
	svc := tenant.NewService(repo, owners, audit.NopLogger{}, clock.NewFake(start))

	listings, err := svc.ListTenants(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	for _, l := range listings {
		if l.ID == "t1" {
			require.NotNil(t, l.Owner)
			assert.Equal(t, "ana@acme.io", l.Owner.Email)
		} else {
			assert.Nil(t, l.Owner)
		}
	}
}
