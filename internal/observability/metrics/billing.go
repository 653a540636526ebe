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

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BillingInstruments records billing and access events. A nil receiver is
// a no-op so components can run without metrics.
type BillingInstruments struct {
	reconciliations metric.Int64Counter
	webhooks        metric.Int64Counter
	exchangeCodes   metric.Int64Counter
	gatewayLatency  metric.Float64Histogram
}

// NewBillingInstruments registers the billing instruments on m.
func NewBillingInstruments(m *Meter) (*BillingInstruments, error) {
	reconciliations, err := m.CreateCounter("billing.reconciliations", "Payment settlements by outcome")
	if err != nil {
		return nil, err
	}
	webhooks, err := m.CreateCounter("billing.webhook.notifications", "Gateway notifications by signature verification result")
	if err != nil {
		return nil, err
	}
	exchangeCodes, err := m.CreateCounter("auth.exchange_codes", "One-time exchange codes by action")
	if err != nil {
		return nil, err
	}
	gatewayLatency, err := m.CreateHistogram("billing.gateway.duration", "Payment gateway call latency", "ms")
	if err != nil {
		return nil, err
	}
	return &BillingInstruments{
		reconciliations: reconciliations,
		webhooks:        webhooks,
		exchangeCodes:   exchangeCodes,
		gatewayLatency:  gatewayLatency,
	}, nil
}

// Reconciled counts a settlement attempt.
func (b *BillingInstruments) Reconciled(ctx context.Context, outcome string) {
	if b == nil {
		return
	}
	b.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// WebhookReceived counts a gateway notification.
func (b *BillingInstruments) WebhookReceived(ctx context.Context, verification string) {
	if b == nil {
		return
	}
	b.webhooks.Add(ctx, 1, metric.WithAttributes(attribute.String("verification", verification)))
}

// ExchangeCode counts issued, redeemed and refused codes.
func (b *BillingInstruments) ExchangeCode(ctx context.Context, action string) {
	if b == nil {
		return
	}
	b.exchangeCodes.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// GatewayCall records the latency of a gateway operation.
func (b *BillingInstruments) GatewayCall(ctx context.Context, operation string, d time.Duration, err error) {
	if b == nil {
		return
	}
	b.gatewayLatency.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	))
}
