package billing_test

import (
	"context"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/store/memory"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, in billing.CheckoutInput) (*billing.Checkout, error) {
	args := m.Called(ctx, in)
	if c, ok := args.Get(0).(*billing.Checkout); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*billing.Payment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) FindApprovedPayment(ctx context.Context, ref string) (*billing.Payment, error) {
	args := m.Called(ctx, ref)
	if p, ok := args.Get(0).(*billing.Payment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// conflictingRepo lets a concurrent writer bump the stored record before
// each of the first n updates.
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

var prices = billing.Prices{
	Monthly:   decimal.NewFromInt(197),
	Extension: decimal.NewFromInt(97),
	Upgrade:   decimal.NewFromInt(197),
}

func seed(repo *memory.TenantRepository, id string, mutate func(t *tenant.Tenant)) {
	t := &tenant.Tenant{
		ID:                id,
		Name:              "Acme " + id,
		Slug:              "acme-" + id,
		Document:          "doc-" + id,
		Email:             id + "@acme.io",
		Status:            tenant.StatusTrial,
		Plan:              tenant.PlanTrial,
		TrialEndsAt:       start.Add(24 * time.Hour),
		MonthlyPaymentDay: tenant.DefaultPaymentDay,
		Version:           1,
		CreatedAt:         start,
	}
	if mutate != nil {
		mutate(t)
	}
	repo.Put(t)
}

func extension(ref string, status tenant.RequestStatus) *tenant.ExtensionRequest {
	r := &tenant.ExtensionRequest{Cycle: tenant.CycleTrial}
	r.Status = status
	r.ReferenceCode = ref
	r.Amount = decimal.NewFromInt(97)
	r.RequestedAt = start
	return r
}

func upgrade(ref string, status tenant.RequestStatus) *tenant.UpgradeRequest {
	r := &tenant.UpgradeRequest{}
	r.Status = status
	r.ReferenceCode = ref
	r.Amount = decimal.NewFromInt(197)
	r.RequestedAt = start
	return r
}

func newReconciler(repo tenant.Repository, clk clock.Clock) *billing.Reconciler {
	return billing.NewReconciler(repo, clk, audit.NopLogger{}, nil, time.Second)
}

func isKind(kind apperr.Kind) func(error) bool {
	return func(err error) bool { return apperr.KindOf(err) == kind }
}
