package billing

import (
	"context"
	"errors"

	"github.com/fluxoclean/controlplane/internal/tenant"
)

// OutcomePending means the gateway has no approved payment for the
// reference yet.
const OutcomePending tenant.Outcome = "pending"

// Poller lets a tenant ask whether a checkout it opened has been paid, for
// when the gateway notification is late or lost.
type Poller struct {
	repo       tenant.Repository
	gateway    Gateway
	reconciler *Reconciler
}

// NewPoller creates a poller.
func NewPoller(repo tenant.Repository, gateway Gateway, reconciler *Reconciler) *Poller {
	return &Poller{repo: repo, gateway: gateway, reconciler: reconciler}
}

// CheckPayment searches the gateway for an approved payment tagged with ref
// and settles it. ref must belong to tenantID.
func (p *Poller) CheckPayment(ctx context.Context, tenantID, ref string) (Result, error) {
	t, err := p.repo.GetByReference(ctx, ref)
	if errors.Is(err, tenant.ErrTenantNotFound) || (err == nil && t.ID != tenantID) {
		return Result{}, tenant.ErrRequestNotFound
	}
	if err != nil {
		return Result{}, err
	}

	payment, err := p.gateway.FindApprovedPayment(ctx, ref)
	if errors.Is(err, ErrPaymentNotFound) {
		return Result{
			Outcome:  OutcomePending,
			Message:  "payment not confirmed yet",
			TenantID: t.ID,
		}, nil
	}
	if err != nil {
		return Result{}, err
	}

	return p.reconciler.ApplyPayment(ctx, ref, payment.TransactionAmount)
}
