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

package tenant

import "time"

// Outcome describes what a payment settlement did.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeRejected         Outcome = "rejected"
)

// ApplyPayment settles the request identified by ref as paid. Approved
// requests are left untouched, so replaying a payment is a no-op. The
// caller persists t.
func (t *Tenant) ApplyPayment(ref string, now time.Time) (Outcome, error) {
	idx := t.Requests.IndexOfReference(ref)
	if idx < 0 {
		return OutcomeNotFound, nil
	}

	switch Base(t.Requests[idx]).Status {
	case RequestApproved:
		return OutcomeAlreadyProcessed, nil
	case RequestRejected:
		return OutcomeRejected, nil
	}

	if err := t.settle(idx, EventPaymentConfirmed, now); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// Approve records an administrator approval of the request at idx. An
// upgrade needs the URL of the dedicated instance it will be moved to.
func (t *Tenant) Approve(idx int, targetURL string, now time.Time) error {
	if idx < 0 || idx >= len(t.Requests) {
		return ErrRequestNotFound
	}
	r := t.Requests[idx]
	if r.Type() == RequestUpgrade {
		if targetURL == "" {
			return ErrTargetURLRequired
		}
		if _, err := Transition(r.Type(), Base(r).Status, EventApprove); err != nil {
			return err
		}
		t.SingleTenantURL = targetURL
	}
	return t.settle(idx, EventApprove, now)
}

// Reject records an administrator rejection of the request at idx.
func (t *Tenant) Reject(idx int, now time.Time) error {
	if idx < 0 || idx >= len(t.Requests) {
		return ErrRequestNotFound
	}
	return t.settle(idx, EventReject, now)
}

// settle moves the request at idx through the transition table and applies
// the account effects of an approval.
func (t *Tenant) settle(idx int, event Event, now time.Time) error {
	r := t.Requests[idx]
	b := Base(r)
	to, err := Transition(r.Type(), b.Status, event)
	if err != nil {
		return err
	}
	b.Status = to
	if to != RequestApproved {
		return nil
	}

	switch r.Type() {
	case RequestExtension:
		t.applyExtension(now)
	case RequestUpgrade, RequestMigrate:
		t.applyUpgrade(now)
	}

	// Leftover pending requests of the same type would otherwise be payable
	// a second time.
	t.Requests = t.Requests.withoutPending(r.Type(), idx)
	return nil
}

func (t *Tenant) applyExtension(now time.Time) {
	from := t.TrialEndsAt
	if now.After(from) {
		from = now
	}
	t.TrialEndsAt = from.AddDate(0, 0, extensionDays)
	if t.Status != StatusActive {
		t.Status = StatusTrial
	}
	t.ExtensionCount++

	if t.Plan == PlanSingleTenant {
		t.Status = StatusActive
		paid := now
		t.LastPaymentDate = &paid
	}
}

func (t *Tenant) applyUpgrade(now time.Time) {
	t.Plan = PlanSingleTenant
	t.Status = StatusActive
	paid := now
	t.LastPaymentDate = &paid
	t.BillingDayConfigured = false
	ends := now.AddDate(0, 0, subscriptionDays)
	t.SubscriptionEndsAt = &ends
}
