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

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/observability/metrics"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxSettleAttempts = 3

// Result reports what ApplyPayment did with a payment.
type Result struct {
	Outcome  tenant.Outcome `json:"outcome"`
	Applied  bool           `json:"applied"`
	Message  string         `json:"message"`
	TenantID string         `json:"tenant_id,omitempty"`
}

var outcomeMessages = map[tenant.Outcome]string{
	tenant.OutcomeApplied:          "payment applied",
	tenant.OutcomeAlreadyProcessed: "payment already processed",
	tenant.OutcomeNotFound:         "no billing request matches this reference",
	tenant.OutcomeRejected:         "billing request was rejected",
}

func newResult(outcome tenant.Outcome, tenantID string) Result {
	return Result{
		Outcome:  outcome,
		Applied:  outcome == tenant.OutcomeApplied,
		Message:  outcomeMessages[outcome],
		TenantID: tenantID,
	}
}

// Reconciler applies confirmed payments to tenant ledgers. It is the single
// settlement path for gateway notifications and payment polling.
type Reconciler struct {
	repo        tenant.Repository
	clock       clock.Clock
	auditLogger audit.Logger
	instruments *metrics.BillingInstruments
	tracer      trace.Tracer
	timeout     time.Duration
}

// NewReconciler creates a reconciler. timeout bounds each ApplyPayment call;
// zero leaves the caller's deadline alone.
func NewReconciler(repo tenant.Repository, clk clock.Clock, auditLogger audit.Logger, instruments *metrics.BillingInstruments, timeout time.Duration) *Reconciler {
	return &Reconciler{
		repo:        repo,
		clock:       clk,
		auditLogger: auditLogger,
		instruments: instruments,
		tracer:      otel.Tracer("github.com/fluxoclean/controlplane/internal/billing"),
		timeout:     timeout,
	}
}

// ApplyPayment settles the request identified by ref. Replays are reported
// as already_processed and never apply effects twice. A returned error means
// the payment was not applied and may be retried.
func (r *Reconciler) ApplyPayment(ctx context.Context, ref string, amountPaid decimal.Decimal) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "billing.ApplyPayment", trace.WithAttributes(
		attribute.String("billing.reference_code", ref),
	))
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.applyPayment(ctx, ref, amountPaid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		r.instruments.Reconciled(ctx, "error")
		slog.ErrorContext(ctx, "failed to apply payment",
			logger.ReferenceCode(ref),
			logger.Error(err),
			logger.Component("billing"),
		)
		return Result{}, err
	}

	span.SetAttributes(attribute.String("billing.outcome", string(res.Outcome)))
	r.instruments.Reconciled(ctx, string(res.Outcome))
	level := slog.LevelInfo
	if res.Outcome == tenant.OutcomeNotFound || res.Outcome == tenant.OutcomeRejected {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "payment reconciled",
		logger.ReferenceCode(ref),
		logger.TenantID(res.TenantID),
		logger.Outcome(string(res.Outcome)),
		logger.Component("billing"),
	)
	return res, nil
}

func (r *Reconciler) applyPayment(ctx context.Context, ref string, amountPaid decimal.Decimal) (Result, error) {
	if ref == "" {
		return newResult(tenant.OutcomeNotFound, ""), nil
	}

	for attempt := 0; attempt < maxSettleAttempts; attempt++ {
		t, err := r.repo.GetByReference(ctx, ref)
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return newResult(tenant.OutcomeNotFound, ""), nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("failed to load tenant for reference: %w", err)
		}

		idx := t.Requests.IndexOfReference(ref)
		if idx < 0 {
			return newResult(tenant.OutcomeNotFound, t.ID), nil
		}
		req := t.Requests[idx]
		expected := tenant.Base(req).Amount

		outcome, err := t.ApplyPayment(ref, r.clock.Now())
		if err != nil {
			return Result{}, err
		}
		if outcome != tenant.OutcomeApplied {
			return newResult(outcome, t.ID), nil
		}

		if err := r.repo.Update(ctx, t); err != nil {
			if errors.Is(err, tenant.ErrVersionConflict) {
				slog.DebugContext(ctx, "ledger changed during settlement, retrying",
					logger.TenantID(t.ID),
					slog.Int("attempt", attempt+1),
				)
				continue
			}
			return Result{}, fmt.Errorf("failed to persist settlement: %w", err)
		}

		r.recordApplied(ctx, t, req, amountPaid, expected)
		return newResult(tenant.OutcomeApplied, t.ID), nil
	}
	return Result{}, fmt.Errorf("settlement of %s: %w", ref, tenant.ErrVersionConflict)
}

func (r *Reconciler) recordApplied(ctx context.Context, t *tenant.Tenant, req tenant.Request, paid, expected decimal.Decimal) {
	b := tenant.Base(req)
	if !paid.IsZero() && !paid.Equal(expected) {
		slog.WarnContext(ctx, "paid amount differs from requested amount",
			logger.TenantID(t.ID),
			logger.ReferenceCode(b.ReferenceCode),
			logger.Amount(paid.StringFixed(2)),
			slog.String("expected_amount", expected.StringFixed(2)),
		)
		r.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypePaymentAmountMismatch,
			TenantID: t.ID,
			Resource: b.ReferenceCode,
			Metadata: map[string]any{
				"paid":     paid.StringFixed(2),
				"expected": expected.StringFixed(2),
			},
		})
	}

	r.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePaymentApplied,
		TenantID: t.ID,
		Resource: b.ReferenceCode,
		Metadata: map[string]any{
			"request_type": string(req.Type()),
			"amount":       paid.StringFixed(2),
			"status":       string(t.Status),
			"plan":         string(t.Plan),
		},
	})
}
