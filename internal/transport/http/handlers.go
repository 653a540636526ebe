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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fluxoclean/controlplane/internal/account"
	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/authz"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/fluxoclean/controlplane/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 10

// HealthChecker is a dependency checked by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the services the handlers call into.
type Dependencies struct {
	Accounts     *account.Service
	Users        *identity.Service
	Tenants      *tenant.Service
	Intake       *billing.Intake
	Poller       *billing.Poller
	Webhooks     *webhook.Processor
	Gate         *authz.Gate
	Destinations tenant.Destinations
	Health       map[string]HealthChecker
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	accounts     *account.Service
	users        *identity.Service
	tenants      *tenant.Service
	intake       *billing.Intake
	poller       *billing.Poller
	webhooks     *webhook.Processor
	gate         *authz.Gate
	destinations tenant.Destinations
	health       map[string]HealthChecker
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		accounts:     deps.Accounts,
		users:        deps.Users,
		tenants:      deps.Tenants,
		intake:       deps.Intake,
		poller:       deps.Poller,
		webhooks:     deps.Webhooks,
		gate:         deps.Gate,
		destinations: deps.Destinations,
		health:       deps.Health,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(BodyLimit(maxBodyBytes))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// The gateway retries until it sees a 2xx; authenticity is checked
		// by the processor, after the acknowledgement.
		r.Post("/webhooks/mercadopago", h.MercadoPagoWebhook)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/exchange-code", h.ExchangeCode)
			r.Post("/pre-register", h.PreRegister)
			r.Post("/validate-registration", h.ValidateRegistration)
			r.Post("/complete-registration", h.CompleteRegistration)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Get("/reset-password/{token}", h.ValidateResetToken)
			r.Post("/reset-password", h.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Use(RequireRoles(identity.RoleOwner))
				r.Get("/sub-users", h.ListSubUsers)
				r.Post("/sub-users", h.CreateSubUser)
				r.Put("/sub-users/{id}", h.UpdateSubUser)
				r.Delete("/sub-users/{id}", h.DeleteSubUser)
			})
		})

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/return", h.SubscriptionReturn)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Get("/status", h.SubscriptionStatus)
				r.Put("/billing-day", h.SetBillingDay)
				r.Post("/request", h.CreateBillingRequest)
				r.Post("/check-payment/{reference}", h.CheckPayment)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(RequireRoles(identity.RoleSuperadmin))
			r.Get("/tenants", h.ListTenants)
			r.Patch("/tenants/{id}/status", h.SetTenantStatus)
			r.Post("/tenants/{id}/approve-request", h.ApproveRequest)
			r.Post("/tenants/{id}/reject-request", h.RejectRequest)
		})
	})

	return r
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service and its stores are reachable
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Service: "fluxoclean-controlplane"}
	status := http.StatusOK
	if len(h.health) > 0 {
		resp.Checks = make(map[string]string, len(h.health))
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, checker := range h.health {
			if err := checker.HealthCheck(ctx); err != nil {
				slog.WarnContext(ctx, "health check failed", logger.Component(name), logger.Error(err))
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	respondJSON(w, status, resp)
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errInvalidBody
	}
	return nil
}

var (
	errInvalidBody  = apperr.New(apperr.KindValidation, "invalid request body")
	errBodyTooLarge = apperr.New(apperr.KindValidation, "request body too large")
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}
