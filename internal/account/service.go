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

// Package account orchestrates onboarding, sign-in and password recovery
// across tenants, users and bearer tokens.
package account

import (
	"context"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/exchange"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/fluxoclean/controlplane/internal/token"
)

// Domain errors
var (
	ErrFieldsRequired      = apperr.New(apperr.KindValidation, "all fields are required")
	ErrInvalidSystemType   = apperr.New(apperr.KindValidation, "invalid system type")
	ErrInvalidCompanyName  = apperr.New(apperr.KindValidation, "company name is not valid for a web address")
	ErrAccountExists       = apperr.New(apperr.KindConflict, "document or email already used by an active account")
	ErrSlugTaken           = apperr.New(apperr.KindConflict, "this web address is already in use, try another name")
	ErrPendingVerification = apperr.New(apperr.KindForbidden, "account pending verification, check your email")
	ErrRecoveryEmailFailed = apperr.New(apperr.KindUpstream, "failed to send recovery email")
	ErrTenantMissing       = apperr.New(apperr.KindInternal, "user has no tenant")
)

// OperatorRedirect is where the platform operator lands after sign-in.
const OperatorRedirect = "/superadmin"

// minSlugLength is the shortest usable web address.
const minSlugLength = 3

// Notifier sends the account emails.
type Notifier interface {
	SendCompleteRegistration(ctx context.Context, to, companyName, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// Config holds token lifetimes, operator credentials and destinations.
type Config struct {
	UserTokenTTL     time.Duration
	OperatorTokenTTL time.Duration
	Operator         identity.Operator
	Destinations     tenant.Destinations
}

// Session is handed to a client after a successful sign-in.
type Session struct {
	Token       string
	Code        string
	RedirectURL string
	User        *identity.User
	Tenant      *tenant.Tenant
	Operator    bool
	Name        string
	Email       string
}

// Service implements the account flows.
type Service struct {
	tenants     tenant.Repository
	users       *identity.Service
	issuer      *token.Issuer
	codes       *exchange.Broker
	notifier    Notifier
	auditLogger audit.Logger
	clock       clock.Clock
	cfg         Config
}

// NewService creates an account service.
func NewService(
	tenants tenant.Repository,
	users *identity.Service,
	issuer *token.Issuer,
	codes *exchange.Broker,
	notifier Notifier,
	auditLogger audit.Logger,
	clk clock.Clock,
	cfg Config,
) *Service {
	return &Service{
		tenants:     tenants,
		users:       users,
		issuer:      issuer,
		codes:       codes,
		notifier:    notifier,
		auditLogger: auditLogger,
		clock:       clk,
		cfg:         cfg,
	}
}

// ExchangeCode redeems a one-time code for its bearer token.
func (s *Service) ExchangeCode(ctx context.Context, code string) (string, error) {
	tok, err := s.codes.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	s.auditLogger.Log(ctx, audit.Event{Type: audit.TypeCodeExchanged, Resource: "exchange_code"})
	return tok, nil
}

// openSession issues a bearer token and an exchange code for a tenant user.
func (s *Service) openSession(ctx context.Context, u *identity.User, t *tenant.Tenant) (*Session, error) {
	raw, err := s.issuer.Issue(token.Claims{
		UserID:      u.ID,
		TenantID:    t.ID,
		Role:        string(u.Role),
		Name:        u.Name,
		Email:       u.Email,
		CompanyName: t.Name,
		Document:    t.Document,
	}, s.cfg.UserTokenTTL)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.Issue(ctx, raw)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		TenantID: t.ID,
		ActorID:  u.ID,
		Resource: "bearer_token",
		Metadata: map[string]any{"role": string(u.Role)},
	})
	return &Session{
		Token:       raw,
		Code:        code,
		RedirectURL: s.cfg.Destinations.For(t),
		User:        u,
		Tenant:      t,
		Name:        u.Name,
		Email:       u.Email,
	}, nil
}
