package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:     srv.URL,
		AccessToken: "TEST-token",
		PublicURL:   "https://api.fluxoclean.test/",
		Timeout:     2 * time.Second,
	}, nil)
	require.NoError(t, err)
	return c
}

// TestPurpose: Validates checkout preference creation against the gateway API.
// Scope: Unit Test
// Security: Access token is sent as a bearer credential, never in the body
// Expected: The request carries the reference, amount, return and notification URLs; the response maps to a checkout.
// Test Case ID: MP-01
func TestClient_CreateCheckout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))

		var body preferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TRIAL-20260501-ABCDEF01", body.ExternalReference)
		require.Len(t, body.Items, 1)
		assert.Equal(t, 97.5, body.Items[0].UnitPrice)
		assert.Equal(t, "BRL", body.Items[0].CurrencyID)
		assert.Equal(t, "https://api.fluxoclean.test/api/subscription/return", body.BackURLs.Success)
		assert.Equal(t, "https://api.fluxoclean.test/api/webhooks/mercadopago", body.NotificationURL)
		require.NotNil(t, body.Payer)
		assert.Equal(t, "owner@acme.io", body.Payer.Email)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"123-pref","init_point":"https://www.mercadopago.com.br/checkout?pref_id=123-pref"}`))
	})

	out, err := c.CreateCheckout(context.Background(), billing.CheckoutInput{
		ReferenceCode: "TRIAL-20260501-ABCDEF01",
		Title:         "Trial extension",
		Amount:        decimal.RequireFromString("97.50"),
		PayerEmail:    "owner@acme.io",
	})
	require.NoError(t, err)
	assert.Equal(t, "123-pref", out.PreferenceID)
	assert.Contains(t, out.CheckoutURL, "pref_id=123-pref")
}

// TestPurpose: Validates payment lookups.
// Scope: Unit Test
// Expected: Numeric ids and amounts decode exactly; 404 maps to ErrPaymentNotFound; 5xx maps to an upstream error.
// Test Case ID: MP-02
func TestClient_GetPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payments/1234567890":
			_, _ = w.Write([]byte(`{"id":1234567890,"status":"approved","external_reference":"MTH-20260501-0000AAAA","transaction_amount":197.00}`))
		case "/v1/payments/404":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Payment not found","error":"not_found","status":404}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"upstream down"}`))
		}
	})
	ctx := context.Background()

	p, err := c.GetPayment(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", p.ID)
	assert.Equal(t, billing.PaymentApproved, p.Status)
	assert.Equal(t, "MTH-20260501-0000AAAA", p.ExternalReference)
	assert.True(t, p.TransactionAmount.Equal(decimal.NewFromInt(197)))

	_, err = c.GetPayment(ctx, "404")
	require.ErrorIs(t, err, billing.ErrPaymentNotFound)

	_, err = c.GetPayment(ctx, "500")
	require.ErrorIs(t, err, billing.ErrGatewayUnavailable)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

// TestPurpose: Validates the approved-payment search used by payment polling.
// Scope: Unit Test
// Expected: The search is filtered by reference and status; an empty result is ErrPaymentNotFound.
// Test Case ID: MP-03
func TestClient_FindApprovedPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "approved", q.Get("status"))
		assert.Equal(t, "1", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		if q.Get("external_reference") == "UPG-PROV-20260501-0000BBBB" {
			_, _ = w.Write([]byte(`{"results":[{"id":77,"status":"approved","external_reference":"UPG-PROV-20260501-0000BBBB","transaction_amount":197}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	ctx := context.Background()

	p, err := c.FindApprovedPayment(ctx, "UPG-PROV-20260501-0000BBBB")
	require.NoError(t, err)
	assert.Equal(t, "77", p.ID)

	_, err = c.FindApprovedPayment(ctx, "MTH-20260501-0000CCCC")
	require.ErrorIs(t, err, billing.ErrPaymentNotFound)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseURL: "https://api.mercadopago.com", PublicURL: "https://api.test"}, nil)
	require.ErrorIs(t, err, billing.ErrGatewayNotConfigured)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}
