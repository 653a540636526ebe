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

package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/id"
	"github.com/fluxoclean/controlplane/internal/tenant"
)

// ResetTokenLifetime bounds how long a password reset link stays valid.
const ResetTokenLifetime = time.Hour

// SubUserInput carries the fields an owner sets on a sub-user.
type SubUserInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	clock              clock.Clock
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	clk clock.Clock,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		clock:              clk,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the syntax of an email address.
func ValidateEmail(email string) error {
	if len(email) < 3 || len(email) > 254 {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// EnsureEmailAvailable fails with ErrUserAlreadyExists when email is taken.
func (s *Service) EnsureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return ErrUserAlreadyExists
	}
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return fmt.Errorf("failed to check email: %w", err)
}

// CreateOwner creates the owner user of a freshly registered tenant.
func (s *Service) CreateOwner(ctx context.Context, tenantID, name, email, password string) (*User, error) {
	return s.create(ctx, "", tenantID, SubUserInput{Name: name, Email: email, Password: password}, RoleOwner)
}

func (s *Service) create(ctx context.Context, actorID, tenantID string, in SubUserInput, role Role) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if !IsStrongPassword(in.Password) {
		return nil, ErrWeakPassword
	}
	if err := s.EnsureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock.Now()
	user := &User{
		ID:           id.NewUUIDv7(),
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: user.ID,
		Metadata: map[string]any{"role": string(role)},
	})
	return user, nil
}

// Authenticate authenticates a user with email and password
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	now := s.clock.Now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: user.TenantID,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if s.lockoutMaxAttempts > 0 && attempts >= s.lockoutMaxAttempts {
			until := now.Add(s.lockoutDuration)
			lockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				TenantID: user.TenantID,
				ActorID:  user.ID,
				Resource: "login",
				Metadata: map[string]any{audit.AttrAttempts: attempts},
			})
		}
		_ = s.repo.UpdateLockout(ctx, user.ID, attempts, lockedUntil)

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: user.TenantID,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: attempts,
			},
		})
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		_ = s.repo.UpdateLockout(ctx, user.ID, 0, nil)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// OwnerOf returns the owner contact of a tenant.
func (s *Service) OwnerOf(ctx context.Context, tenantID string) (*tenant.Owner, error) {
	u, err := s.repo.GetOwner(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &tenant.Owner{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// ListUsers lists every user of a tenant, owner included.
func (s *Service) ListUsers(ctx context.Context, tenantID string) ([]*User, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// CreateSubUser adds a user to the owner's tenant. Role defaults to technician.
func (s *Service) CreateSubUser(ctx context.Context, actorID, tenantID string, in SubUserInput) (*User, error) {
	role := in.Role
	if role == "" {
		role = RoleTechnician
	}
	if !role.Assignable() {
		return nil, ErrInvalidRole
	}
	return s.create(ctx, actorID, tenantID, in, role)
}

// UpdateSubUser changes the profile, role and optionally the password of a
// sub-user.
func (s *Service) UpdateSubUser(ctx context.Context, actorID, tenantID, userID string, in SubUserInput) (*User, error) {
	user, err := s.subUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if email := NormalizeEmail(in.Email); email != "" && email != user.Email {
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		if err := s.EnsureEmailAvailable(ctx, email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if in.Role != "" {
		if !in.Role.Assignable() {
			return nil, ErrInvalidRole
		}
		user.Role = in.Role
	}
	if in.Password != "" {
		if !IsStrongPassword(in.Password) {
			return nil, ErrWeakPassword
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: user.ID,
		Metadata: map[string]any{"role": string(user.Role)},
	})
	return user, nil
}

// DeleteSubUser removes a sub-user. The owner cannot be removed.
func (s *Service) DeleteSubUser(ctx context.Context, actorID, tenantID, userID string) error {
	if _, err := s.subUser(ctx, tenantID, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserDeleted,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: userID,
	})
	return nil
}

func (s *Service) subUser(ctx context.Context, tenantID, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Users of other tenants are reported as missing.
	if user.TenantID != tenantID {
		return nil, ErrUserNotFound
	}
	if user.Role == RoleOwner {
		return nil, ErrOwnerImmutable
	}
	return user, nil
}

// IssueResetToken stores a fresh reset token for the user with email and
// returns the raw token. Unknown emails yield ErrUserNotFound.
func (s *Service) IssueResetToken(ctx context.Context, email string) (*User, string, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, "", err
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	expires := s.clock.Now().Add(ResetTokenLifetime)
	user.ResetTokenHash = hashToken(token)
	user.ResetPasswordExpires = &expires
	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to store reset token: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordResetRequested,
		TenantID: user.TenantID,
		ActorID:  user.ID,
		Resource: "password",
	})
	return user, token, nil
}

// ValidateResetToken returns the user a reset token belongs to.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrResetTokenInvalid
	}
	user, err := s.repo.GetByResetToken(ctx, hashToken(token), s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}
	return user, nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed and any lockout is cleared.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if !IsStrongPassword(password) {
		return ErrWeakPassword
	}
	user, err := s.ValidateResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetPasswordExpires = nil
	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	_ = s.repo.UpdateLockout(ctx, user.ID, 0, nil)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		TenantID: user.TenantID,
		ActorID:  user.ID,
		Resource: "password",
	})
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DiscardOwner removes an owner created for a registration that did not
// complete.
func (s *Service) DiscardOwner(ctx context.Context, tenantID, userID string) error {
	return s.repo.Delete(ctx, tenantID, userID)
}
