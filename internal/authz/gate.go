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

// Package authz turns a bearer credential into a principal and enforces
// tenant-level access rules.
package authz

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/fluxoclean/controlplane/internal/token"
)

// Domain errors
var (
	ErrMissingToken    = apperr.New(apperr.KindUnauthenticated, "authentication required")
	ErrUnknownTenant   = apperr.New(apperr.KindUnauthenticated, "tenant not found")
	ErrMigrationLocked = apperr.New(apperr.KindLocked, "access locked: migration in progress")
	ErrAccessDenied    = apperr.New(apperr.KindForbidden, "access denied")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID   string
	TenantID string
	Role     identity.Role
	Name     string
	Email    string
	// Tenant is the freshly loaded tenant; nil for the platform operator.
	Tenant *tenant.Tenant
	// User is the stored user when it still exists.
	User *identity.User
}

// IsOperator reports whether p is the platform operator.
func (p *Principal) IsOperator() bool {
	return p.Role == identity.RoleSuperadmin
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// TenantLookup loads tenants.
type TenantLookup interface {
	GetByID(ctx context.Context, id string) (*tenant.Tenant, error)
}

// UserLookup loads users.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

// Gate authenticates requests.
type Gate struct {
	tokens      TokenVerifier
	tenants     TenantLookup
	users       UserLookup
	auditLogger audit.Logger
}

// NewGate creates a gate.
func NewGate(tokens TokenVerifier, tenants TenantLookup, users UserLookup, auditLogger audit.Logger) *Gate {
	return &Gate{tokens: tokens, tenants: tenants, users: users, auditLogger: auditLogger}
}

// Authenticate validates an Authorization header value and builds the
// principal. Tenant state is re-read on every call so suspensions and
// migration locks apply to tokens issued earlier.
func (g *Gate) Authenticate(ctx context.Context, header string) (*Principal, error) {
	raw, ok := bearer(header)
	if !ok {
		return nil, ErrMissingToken
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	p := &Principal{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     identity.Role(claims.Role),
		Name:     claims.Name,
		Email:    claims.Email,
	}
	if p.IsOperator() {
		return p, nil
	}
	if p.TenantID == "" {
		return nil, token.ErrInvalidToken
	}

	t, err := g.tenants.GetByID(ctx, p.TenantID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, ErrUnknownTenant
	}
	if err != nil {
		return nil, err
	}
	p.Tenant = t

	if t.MigrationInProgress() && p.Role != identity.RoleOwner {
		slog.InfoContext(ctx, "access refused during migration",
			logger.TenantID(t.ID),
			logger.UserID(p.UserID),
			logger.Role(string(p.Role)),
		)
		g.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccessLocked,
			TenantID: t.ID,
			ActorID:  p.UserID,
			Metadata: map[string]any{audit.AttrReason: "migration_in_progress"},
		})
		return nil, ErrMigrationLocked
	}

	if p.UserID != "" {
		u, err := g.users.GetByID(ctx, p.UserID)
		switch {
		case err == nil:
			if u.TenantID != t.ID {
				return nil, token.ErrInvalidToken
			}
			p.User = u
			p.Role = u.Role
			p.Name = u.Name
			p.Email = u.Email
		case errors.Is(err, identity.ErrUserNotFound):
			// keep the claims
		default:
			return nil, err
		}
	}
	return p, nil
}

// RequireRole fails with ErrAccessDenied unless p holds one of roles.
func RequireRole(p *Principal, roles ...identity.Role) error {
	if p == nil {
		return ErrMissingToken
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return ErrAccessDenied
}

// bearer extracts the token from "Bearer <token>". Front-ends that lost
// their token send the literal strings "null" or "undefined".
func bearer(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "null", "undefined":
		return "", false
	}
	return raw, true
}
