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

// Package mercadopago implements billing.Gateway over the Mercado Pago REST
// API.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/observability/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const currencyID = "BRL"

// Config holds client settings.
type Config struct {
	BaseURL     string
	AccessToken string
	// PublicURL is the externally reachable base URL of this API, used for
	// return and notification URLs.
	PublicURL string
	Timeout   time.Duration
	Retries   int
}

// Client talks to Mercado Pago.
type Client struct {
	http        *resty.Client
	publicURL   string
	instruments *metrics.BillingInstruments
}

var _ billing.Gateway = (*Client)(nil)

// New creates a client. Missing credentials or URLs are a configuration
// error; callers fall back to billing.UnconfiguredGateway.
func New(cfg Config, instruments *metrics.BillingInstruments) (*Client, error) {
	if cfg.BaseURL == "" || cfg.AccessToken == "" || cfg.PublicURL == "" {
		return nil, billing.ErrGatewayNotConfigured
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetAuthToken(cfg.AccessToken).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:        httpClient,
		publicURL:   strings.TrimRight(cfg.PublicURL, "/"),
		instruments: instruments,
	}, nil
}

type preferenceItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	CurrencyID  string  `json:"currency_id"`
	UnitPrice   float64 `json:"unit_price"`
}

type preferencePayer struct {
	Email string `json:"email"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             *preferencePayer `json:"payer,omitempty"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          backURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	NotificationURL   string           `json:"notification_url"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type paymentResponse struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

type searchResponse struct {
	Results []paymentResponse `json:"results"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// CreateCheckout creates a checkout preference tagged with the reference.
func (c *Client) CreateCheckout(ctx context.Context, in billing.CheckoutInput) (*billing.Checkout, error) {
	returnURL := c.publicURL + "/api/subscription/return"
	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:       in.Title,
			Description: in.Description,
			Quantity:    1,
			CurrencyID:  currencyID,
			UnitPrice:   in.Amount.InexactFloat64(),
		}},
		ExternalReference: in.ReferenceCode,
		BackURLs:          backURLs{Success: returnURL, Failure: returnURL, Pending: returnURL},
		AutoReturn:        "approved",
		NotificationURL:   c.publicURL + "/api/webhooks/mercadopago",
	}
	if in.PayerEmail != "" {
		body.Payer = &preferencePayer{Email: in.PayerEmail}
	}

	var out preferenceResponse
	var apiErr errorResponse
	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/checkout/preferences")
	err = c.check("create_preference", resp, err, &apiErr)
	c.instruments.GatewayCall(ctx, "create_preference", time.Since(started), err)
	if err != nil {
		return nil, err
	}
	if out.ID == "" || out.InitPoint == "" {
		return nil, apperr.New(apperr.KindUpstream, "payment gateway returned an incomplete checkout")
	}

	slog.DebugContext(ctx, "checkout preference created",
		logger.ReferenceCode(in.ReferenceCode),
		slog.String("preference_id", out.ID),
		logger.Component("mercadopago"),
	)
	return &billing.Checkout{PreferenceID: out.ID, CheckoutURL: out.InitPoint}, nil
}

// GetPayment fetches a payment by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	var out paymentResponse
	var apiErr errorResponse
	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/payments/{id}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		c.instruments.GatewayCall(ctx, "get_payment", time.Since(started), nil)
		return nil, billing.ErrPaymentNotFound
	}
	err = c.check("get_payment", resp, err, &apiErr)
	c.instruments.GatewayCall(ctx, "get_payment", time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return out.toPayment(), nil
}

// FindApprovedPayment searches for an approved payment tagged with ref.
func (c *Client) FindApprovedPayment(ctx context.Context, ref string) (*billing.Payment, error) {
	var out searchResponse
	var apiErr errorResponse
	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"external_reference": ref,
			"status":             billing.PaymentApproved,
			"limit":              "1",
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/payments/search")
	err = c.check("search_payments", resp, err, &apiErr)
	c.instruments.GatewayCall(ctx, "search_payments", time.Since(started), err)
	if err != nil {
		return nil, err
	}

	for _, p := range out.Results {
		if p.Status == billing.PaymentApproved && p.ExternalReference == ref {
			return p.toPayment(), nil
		}
	}
	return nil, billing.ErrPaymentNotFound
}

func (c *Client) check(op string, resp *resty.Response, err error, apiErr *errorResponse) error {
	if err != nil {
		slog.Error("payment gateway call failed",
			logger.Operation(op),
			logger.Error(err),
			logger.Component("mercadopago"),
		)
		return fmt.Errorf("%w: %s: %v", billing.ErrGatewayUnavailable, op, err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		slog.Error("payment gateway returned an error",
			logger.Operation(op),
			logger.StatusCode(resp.StatusCode()),
			slog.String("gateway_message", msg),
			logger.Component("mercadopago"),
		)
		return fmt.Errorf("%w: %s: status %d: %s", billing.ErrGatewayUnavailable, op, resp.StatusCode(), msg)
	}
	return nil
}

func (p paymentResponse) toPayment() *billing.Payment {
	return &billing.Payment{
		ID:                p.ID.String(),
		Status:            p.Status,
		ExternalReference: p.ExternalReference,
		TransactionAmount: p.TransactionAmount,
	}
}
