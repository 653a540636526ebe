package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/authz"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/fluxoclean/controlplane/internal/token"
)

// operatorSubject identifies operator tokens. The operator has no user record.
const operatorSubject = "superadmin"

// Login signs in the platform operator or a tenant user.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrFieldsRequired
	}
	if s.cfg.Operator.Matches(email, password) {
		return s.operatorSession(ctx)
	}

	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if u.TenantID == "" {
		return nil, ErrTenantMissing
	}
	t, err := s.tenants.GetByID(ctx, u.TenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, ErrTenantMissing
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if t.Status == tenant.StatusPendingVerification {
		return nil, ErrPendingVerification
	}
	if t.MigrationInProgress() && u.Role != identity.RoleOwner {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccessLocked,
			TenantID: t.ID,
			ActorID:  u.ID,
			Resource: "login",
		})
		return nil, authz.ErrMigrationLocked
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		TenantID: t.ID,
		ActorID:  u.ID,
		Resource: "login",
	})
	return s.openSession(ctx, u, t)
}

func (s *Service) operatorSession(ctx context.Context) (*Session, error) {
	op := s.cfg.Operator
	email := identity.NormalizeEmail(op.Email)
	raw, err := s.issuer.Issue(token.Claims{
		UserID: operatorSubject,
		Role:   string(identity.RoleSuperadmin),
		Name:   op.Name,
		Email:  email,
	}, s.cfg.OperatorTokenTTL)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.Issue(ctx, raw)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  operatorSubject,
		Resource: "login",
		Metadata: map[string]any{"role": string(identity.RoleSuperadmin)},
	})
	return &Session{
		Token:       raw,
		Code:        code,
		RedirectURL: OperatorRedirect,
		Operator:    true,
		Name:        op.Name,
		Email:       email,
	}, nil
}
