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

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/shopspring/decimal"
)

// Gateway errors
var (
	ErrGatewayNotConfigured = apperr.New(apperr.KindConfiguration, "payment gateway is not configured")
	ErrGatewayUnavailable   = apperr.New(apperr.KindUpstream, "payment gateway unavailable")
	ErrPaymentNotFound      = apperr.New(apperr.KindNotFound, "payment not found")
)

// PaymentApproved is the gateway status of a captured payment.
const PaymentApproved = "approved"

// CheckoutInput describes a hosted checkout to open.
type CheckoutInput struct {
	ReferenceCode string
	Title         string
	Description   string
	Amount        decimal.Decimal
	PayerEmail    string
}

// Checkout is a hosted checkout opened at the gateway.
type Checkout struct {
	PreferenceID string
	CheckoutURL  string
}

// Payment is the gateway's authoritative view of a payment.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	TransactionAmount decimal.Decimal
}

// Gateway is the payment provider.
type Gateway interface {
	// CreateCheckout opens a hosted checkout tagged with in.ReferenceCode.
	CreateCheckout(ctx context.Context, in CheckoutInput) (*Checkout, error)
	// GetPayment fetches a payment by gateway id.
	GetPayment(ctx context.Context, id string) (*Payment, error)
	// FindApprovedPayment returns the first approved payment tagged with ref,
	// or ErrPaymentNotFound.
	FindApprovedPayment(ctx context.Context, ref string) (*Payment, error)
}

// UnconfiguredGateway refuses every call. It stands in when credentials are
// missing so checkout and polling fail loudly instead of silently.
type UnconfiguredGateway struct{}

func (UnconfiguredGateway) CreateCheckout(context.Context, CheckoutInput) (*Checkout, error) {
	return nil, ErrGatewayNotConfigured
}

func (UnconfiguredGateway) GetPayment(context.Context, string) (*Payment, error) {
	return nil, ErrGatewayNotConfigured
}

func (UnconfiguredGateway) FindApprovedPayment(context.Context, string) (*Payment, error) {
	return nil, ErrGatewayNotConfigured
}
