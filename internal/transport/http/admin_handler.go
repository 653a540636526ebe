package http

import (
	"net/http"
	"strconv"

	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// ListTenants lists tenants with their owner contact
// @Summary List Tenants
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} tenant.Listing
// @Failure 403 {object} map[string]string
// @Router /api/admin/tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	listings, err := h.tenants.ListTenants(r.Context(), limit, offset)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

// TenantStatusRequest sets a tenant's status.
type TenantStatusRequest struct {
	Status string `json:"status" example:"blocked"`
}

// SetTenantStatus changes a tenant's status.
func (h *Handler) SetTenantStatus(w http.ResponseWriter, r *http.Request) {
	var req TenantStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	t, err := h.tenants.SetStatus(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"), tenant.Status(req.Status))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// RequestDecision selects the billing request an administrator acts on.
type RequestDecision struct {
	RequestType   string `json:"requestType" example:"upgrade"`
	ReferenceCode string `json:"referenceCode,omitempty"`
	TargetURL     string `json:"targetUrl,omitempty" example:"https://acme.fluxoclean.com.br"`
}

func (d RequestDecision) input() tenant.ApprovalInput {
	return tenant.ApprovalInput{
		ReferenceCode: d.ReferenceCode,
		Type:          tenant.RequestType(d.RequestType),
		TargetURL:     d.TargetURL,
	}
}

// ApproveRequest approves a pending billing request
// @Summary Approve Request
// @Description Extensions are granted directly; upgrades move to waiting_payment with the new instance URL
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Param request body RequestDecision true "Decision"
// @Success 200 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/admin/tenants/{id}/approve-request [post]
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req RequestDecision
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	t, err := h.tenants.ApproveRequest(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// RejectRequest rejects a billing request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var req RequestDecision
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	t, err := h.tenants.RejectRequest(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
