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

package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/observability/metrics"
	"github.com/shopspring/decimal"
)

// PaymentSource fetches the authoritative payment record.
type PaymentSource interface {
	GetPayment(ctx context.Context, id string) (*billing.Payment, error)
}

// Settler applies a confirmed payment.
type Settler interface {
	ApplyPayment(ctx context.Context, ref string, amountPaid decimal.Decimal) (billing.Result, error)
}

// Processor handles notifications after they have been acknowledged.
type Processor struct {
	auth        *Authenticator
	payments    PaymentSource
	settler     Settler
	auditLogger audit.Logger
	instruments *metrics.BillingInstruments
	timeout     time.Duration

	wg sync.WaitGroup
}

// NewProcessor creates a processor. timeout bounds each dispatched
// notification.
func NewProcessor(auth *Authenticator, payments PaymentSource, settler Settler, auditLogger audit.Logger, instruments *metrics.BillingInstruments, timeout time.Duration) *Processor {
	return &Processor{
		auth:        auth,
		payments:    payments,
		settler:     settler,
		auditLogger: auditLogger,
		instruments: instruments,
		timeout:     timeout,
	}
}

// Dispatch processes n in the background. The request context is detached
// so the work outlives the acknowledged request but keeps its trace.
func (p *Processor) Dispatch(ctx context.Context, n Notification) {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		if err := p.Process(ctx, n); err != nil {
			slog.ErrorContext(ctx, "failed to process payment notification",
				logger.PaymentID(n.DataID),
				logger.Error(err),
				logger.Component("webhook"),
			)
		}
	}()
}

// Wait blocks until every dispatched notification finished or ctx is done.
func (p *Processor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process verifies n, fetches the payment it announces and settles it when
// approved.
//
// A signature mismatch is recorded as a security event but processing
// continues: the payment is re-read from the gateway, which is the source of
// truth, so a forged notification can at most trigger a lookup.
func (p *Processor) Process(ctx context.Context, n Notification) error {
	verification := p.auth.Verify(n)
	p.instruments.WebhookReceived(ctx, string(verification))
	switch verification {
	case VerificationMismatch, VerificationMalformed:
		slog.WarnContext(ctx, "payment notification signature check failed",
			slog.String("verification", string(verification)),
			logger.PaymentID(n.DataID),
			slog.String("request_id", n.RequestID),
			logger.Component("webhook"),
		)
		p.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeWebhookSignatureInvalid,
			Resource: n.DataID,
			Metadata: map[string]any{
				audit.AttrReason: string(verification),
				"request_id":     n.RequestID,
			},
		})
	case VerificationSkipped:
		slog.DebugContext(ctx, "payment notification signature not checked", logger.PaymentID(n.DataID))
	}

	if !n.IsPayment() {
		slog.DebugContext(ctx, "ignoring non-payment notification",
			slog.String("type", n.Type),
			slog.String("action", n.Action),
		)
		return nil
	}

	payment, err := p.payments.GetPayment(ctx, n.DataID)
	if errors.Is(err, billing.ErrPaymentNotFound) {
		slog.WarnContext(ctx, "notified payment does not exist", logger.PaymentID(n.DataID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch payment %s: %w", n.DataID, err)
	}
	if payment.Status != billing.PaymentApproved {
		slog.InfoContext(ctx, "payment not approved, nothing to settle",
			logger.PaymentID(payment.ID),
			slog.String("payment_status", payment.Status),
			logger.ReferenceCode(payment.ExternalReference),
		)
		return nil
	}

	res, err := p.settler.ApplyPayment(ctx, payment.ExternalReference, payment.TransactionAmount)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "payment notification processed",
		logger.PaymentID(payment.ID),
		logger.ReferenceCode(payment.ExternalReference),
		logger.Outcome(string(res.Outcome)),
	)
	return nil
}
