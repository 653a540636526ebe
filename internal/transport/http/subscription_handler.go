package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/go-chi/chi/v5"
)

// SubscriptionReturn sends a payer coming back from the gateway checkout to
// the dashboard of the product the paid reference belongs to.
func (h *Handler) SubscriptionReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("external_reference")
	status := q.Get("status")
	if status == "" {
		status = q.Get("collection_status")
	}

	base := h.destinations.Home
	if ref != "" {
		t, err := h.tenants.FindByReference(r.Context(), ref)
		switch {
		case err == nil:
			base = h.destinations.For(t)
		case !errors.Is(err, tenant.ErrTenantNotFound):
			slog.ErrorContext(r.Context(), "failed to resolve checkout return",
				logger.ReferenceCode(ref),
				logger.Error(err),
			)
			http.Redirect(w, r, h.destinations.Home+"?error=redirect_failed", http.StatusFound)
			return
		}
	}

	target := strings.TrimRight(base, "/") + "/dashboard?" + url.Values{
		"status": {status},
		"ref":    {ref},
	}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// SubscriptionStatusResponse is the caller's billing state.
type SubscriptionStatusResponse struct {
	Name                 string        `json:"name"`
	Plan                 tenant.Plan   `json:"plan"`
	Status               tenant.Status `json:"status"`
	TrialEndsAt          time.Time     `json:"trialEndsAt"`
	SubscriptionEndsAt   *time.Time    `json:"subscriptionEndsAt,omitempty"`
	ExtensionCount       int           `json:"extensionCount"`
	Requests             tenant.Ledger `json:"requests"`
	MonthlyPaymentDay    int           `json:"monthlyPaymentDay"`
	BillingDayConfigured bool          `json:"billingDayConfigured"`
	LastPaymentDate      *time.Time    `json:"lastPaymentDate,omitempty"`
}

// SubscriptionStatus returns the caller's billing state
// @Summary Subscription Status
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SubscriptionStatusResponse
// @Failure 401 {object} map[string]string
// @Router /api/subscription/status [get]
func (h *Handler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	t := p.Tenant
	if t == nil {
		var err error
		if t, err = h.tenants.GetTenant(r.Context(), p.TenantID); err != nil {
			respondErr(w, r, err)
			return
		}
	}

	requests := t.Requests
	if requests == nil {
		requests = tenant.Ledger{}
	}
	respondJSON(w, http.StatusOK, SubscriptionStatusResponse{
		Name:                 t.Name,
		Plan:                 t.Plan,
		Status:               t.Status,
		TrialEndsAt:          t.TrialEndsAt,
		SubscriptionEndsAt:   t.SubscriptionEndsAt,
		ExtensionCount:       t.ExtensionCount,
		Requests:             requests,
		MonthlyPaymentDay:    t.MonthlyPaymentDay,
		BillingDayConfigured: t.BillingDayConfigured,
		LastPaymentDate:      t.LastPaymentDate,
	})
}

// BillingDayRequest picks the monthly billing day.
type BillingDayRequest struct {
	Day int `json:"day" example:"10"`
}

// SetBillingDay sets the caller's monthly billing day.
func (h *Handler) SetBillingDay(w http.ResponseWriter, r *http.Request) {
	var req BillingDayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := h.tenants.SetBillingDay(ctx, GetUserID(ctx), GetTenantID(ctx), req.Day); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "billing day updated")
}

// BillingRequest names what the tenant wants to pay for.
type BillingRequest struct {
	Type string `json:"type" example:"extension"`
}

// CreateBillingRequest records a billing request
// @Summary Create Billing Request
// @Description Record a monthly, extension, upgrade or migrate request and open a checkout when one is due
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BillingRequest true "Request Type"
// @Success 201 {object} billing.IntakeResult
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/subscription/request [post]
func (h *Handler) CreateBillingRequest(w http.ResponseWriter, r *http.Request) {
	var req BillingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	p := GetPrincipal(r.Context())
	result, err := h.intake.Create(r.Context(), p.TenantID, p.Email, billing.Intent(req.Type))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// CheckPaymentResponse reports whether a checkout has been paid.
type CheckPaymentResponse struct {
	Status  string         `json:"status"`
	Outcome tenant.Outcome `json:"outcome"`
	Message string         `json:"message"`
}

// CheckPayment asks the gateway whether a checkout was paid and settles it.
func (h *Handler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	result, err := h.poller.CheckPayment(r.Context(), GetTenantID(r.Context()), ref)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	status := "approved"
	switch result.Outcome {
	case billing.OutcomePending:
		status = "pending"
	case tenant.OutcomeRejected, tenant.OutcomeNotFound:
		status = string(result.Outcome)
	}
	respondJSON(w, http.StatusOK, CheckPaymentResponse{
		Status:  status,
		Outcome: result.Outcome,
		Message: result.Message,
	})
}
