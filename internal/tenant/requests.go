package tenant

import (
	"fmt"
	"time"
)

// AddExtension appends a pending extension. Trial extensions are capped;
// monthly renewals are not. Any older pending extension is dropped.
func (t *Tenant) AddExtension(r *ExtensionRequest) error {
	if r.Cycle != CycleMonthly && !t.CanExtend() {
		return ErrExtensionLimit
	}
	r.Status = RequestPending
	t.Requests = t.Requests.withoutPending(RequestExtension, -1)
	t.Requests = append(t.Requests, r)
	return nil
}

// AddUpgrade appends a pending upgrade unless one is already in progress.
func (t *Tenant) AddUpgrade(r *UpgradeRequest) error {
	if t.Requests.IndexOf(RequestUpgrade, RequestPending, RequestWaitingPayment) >= 0 {
		return ErrUpgradeInProgress
	}
	r.Status = RequestPending
	t.Requests = append(t.Requests, r)
	return nil
}

// StartMigration points the upgrade awaiting payment at a fresh checkout.
// The previous reference stays resolvable.
func (t *Tenant) StartMigration(ref, preferenceID string, now time.Time) (*UpgradeRequest, error) {
	idx := t.Requests.IndexOf(RequestUpgrade, RequestWaitingPayment)
	if idx < 0 {
		return nil, ErrNoMigrationPending
	}
	up, ok := t.Requests[idx].(*UpgradeRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected request variant %T", t.Requests[idx])
	}
	if up.ReferenceCode != "" && up.ReferenceCode != ref {
		up.SupersededReferences = append(up.SupersededReferences, up.ReferenceCode)
	}
	up.ReferenceCode = ref
	up.PreferenceID = preferenceID
	up.RequestedAt = now
	return up, nil
}

// SetPaymentDay sets the monthly billing day.
func (t *Tenant) SetPaymentDay(day int) error {
	if day < 1 || day > 28 {
		return ErrInvalidPaymentDay
	}
	t.MonthlyPaymentDay = day
	t.BillingDayConfigured = true
	return nil
}

// SetStatus applies an administrator status change.
func (t *Tenant) SetStatus(to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	if !CanSetStatus(t.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrIllegalStatus, t.Status, to)
	}
	t.Status = to
	return nil
}

// CompleteRegistration starts the trial of a verified pre-registration.
func (t *Tenant) CompleteRegistration(now time.Time) error {
	if t.Status != StatusPendingVerification {
		return ErrRegistrationExpired
	}
	t.Status = StatusTrial
	t.Plan = PlanTrial
	t.TrialEndsAt = now.Add(TrialPeriod)
	t.RegistrationToken = ""
	return nil
}

// ExpireTrial marks an overdue trial as expired. It reports whether t changed.
func (t *Tenant) ExpireTrial(now time.Time) bool {
	if t.Status != StatusTrial || !now.After(t.TrialEndsAt) {
		return false
	}
	t.Status = StatusExpired
	return true
}
