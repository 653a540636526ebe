package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/id"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/gosimple/slug"
)

// PreRegistration is the sign-up form.
type PreRegistration struct {
	CompanyName string
	Document    string
	Email       string
	SystemType  tenant.SystemType
}

// RegistrationPreview pre-fills the completion form.
type RegistrationPreview struct {
	CompanyName string            `json:"companyName"`
	Slug        string            `json:"tenantName"`
	Document    string            `json:"document"`
	Email       string            `json:"email"`
	SystemType  tenant.SystemType `json:"systemType"`
}

// PreRegister records a pending tenant and emails the completion link.
// Submitting again for the same document replaces the pending record and
// invalidates the earlier link.
func (s *Service) PreRegister(ctx context.Context, in PreRegistration) error {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Document = strings.TrimSpace(in.Document)
	in.Email = identity.NormalizeEmail(in.Email)
	if in.CompanyName == "" || in.Document == "" || in.Email == "" || in.SystemType == "" {
		return ErrFieldsRequired
	}
	if !in.SystemType.Valid() {
		return ErrInvalidSystemType
	}
	if err := identity.ValidateEmail(in.Email); err != nil {
		return err
	}

	if _, err := s.tenants.FindVerified(ctx, in.Document, in.Email); err == nil {
		return ErrAccountExists
	} else if !errors.Is(err, tenant.ErrTenantNotFound) {
		return fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if err := s.users.EnsureEmailAvailable(ctx, in.Email); err != nil {
		if errors.Is(err, identity.ErrUserAlreadyExists) {
			return ErrAccountExists
		}
		return err
	}

	name := slug.Make(in.CompanyName)
	if len(name) < minSlugLength {
		return ErrInvalidCompanyName
	}
	taken, err := s.tenants.GetBySlug(ctx, name)
	switch {
	case err == nil:
		if taken.Status != tenant.StatusPendingVerification || (taken.Email != in.Email && taken.Document != in.Document) {
			return ErrSlugTaken
		}
	case !errors.Is(err, tenant.ErrTenantNotFound):
		return fmt.Errorf("failed to check web address: %w", err)
	}

	regToken, err := newRegistrationToken()
	if err != nil {
		return err
	}
	now := s.clock.Now()
	t := &tenant.Tenant{
		ID:                id.NewUUIDv7(),
		Name:              in.CompanyName,
		Slug:              name,
		Document:          in.Document,
		Email:             in.Email,
		SystemType:        in.SystemType,
		Status:            tenant.StatusPendingVerification,
		Plan:              tenant.PlanTrial,
		TrialEndsAt:       now,
		MonthlyPaymentDay: tenant.DefaultPaymentDay,
		RegistrationToken: regToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.tenants.UpsertPending(ctx, t); err != nil {
		if errors.Is(err, tenant.ErrTenantConflict) {
			return ErrSlugTaken
		}
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantPreRegistered,
		TenantID: t.ID,
		Resource: t.Slug,
		Metadata: map[string]any{"system_type": string(t.SystemType)},
	})

	// The record is kept even if the email fails; submitting again resends.
	if err := s.notifier.SendCompleteRegistration(ctx, t.Email, t.Name, regToken); err != nil {
		slog.ErrorContext(ctx, "failed to send registration email",
			logger.TenantID(t.ID),
			logger.Error(err),
			logger.Component("account"),
		)
	}
	return nil
}

// ValidateRegistration returns what a pending registration link refers to.
func (s *Service) ValidateRegistration(ctx context.Context, regToken string) (*RegistrationPreview, error) {
	t, err := s.pendingByToken(ctx, regToken)
	if err != nil {
		return nil, err
	}
	return &RegistrationPreview{
		CompanyName: t.Name,
		Slug:        t.Slug,
		Document:    t.Document,
		Email:       t.Email,
		SystemType:  t.SystemType,
	}, nil
}

// CompleteRegistration creates the owner, starts the trial and signs the
// owner in.
func (s *Service) CompleteRegistration(ctx context.Context, regToken, userName, password string) (*Session, error) {
	if strings.TrimSpace(userName) == "" || password == "" {
		return nil, ErrFieldsRequired
	}
	if !identity.IsStrongPassword(password) {
		return nil, identity.ErrWeakPassword
	}

	t, err := s.pendingByToken(ctx, regToken)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.CreateOwner(ctx, t.ID, userName, t.Email, password)
	if err != nil {
		return nil, err
	}

	t, err = tenant.Mutate(ctx, s.tenants, t.ID, func(t *tenant.Tenant) error {
		if t.RegistrationToken != regToken {
			return tenant.ErrRegistrationExpired
		}
		return t.CompleteRegistration(s.clock.Now())
	})
	if err != nil {
		// Without an active tenant the owner could never sign in, and its
		// email would block the next attempt.
		if delErr := s.users.DiscardOwner(ctx, owner.TenantID, owner.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to roll back owner after registration failure",
				logger.UserID(owner.ID),
				logger.Error(delErr),
			)
		}
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRegistrationCompleted,
		TenantID: t.ID,
		ActorID:  owner.ID,
		Resource: t.Slug,
		Metadata: map[string]any{"trial_ends_at": t.TrialEndsAt},
	})
	return s.openSession(ctx, owner, t)
}

func (s *Service) pendingByToken(ctx context.Context, regToken string) (*tenant.Tenant, error) {
	if regToken == "" {
		return nil, tenant.ErrRegistrationExpired
	}
	t, err := s.tenants.GetByRegistrationToken(ctx, regToken)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, tenant.ErrRegistrationExpired
	}
	if err != nil {
		return nil, err
	}
	if t.Status != tenant.StatusPendingVerification {
		return nil, tenant.ErrRegistrationExpired
	}
	return t, nil
}

func newRegistrationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate registration token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
