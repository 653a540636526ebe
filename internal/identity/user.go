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
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
)

// Domain errors
var (
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")
	ErrUserAlreadyExists  = apperr.New(apperr.KindConflict, "email already in use")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid email or password")
	ErrInvalidEmail       = apperr.New(apperr.KindValidation, "invalid email address")
	ErrInvalidName        = apperr.New(apperr.KindValidation, "name is required")
	ErrWeakPassword       = apperr.New(apperr.KindValidation, "password must have at least 8 characters including upper and lower case letters, a digit and a symbol")
	ErrAccountLocked      = apperr.New(apperr.KindLocked, "account is temporarily locked")
	ErrInvalidRole        = apperr.New(apperr.KindValidation, "invalid role")
	ErrResetTokenInvalid  = apperr.New(apperr.KindValidation, "password reset link is invalid or expired")
	ErrOwnerImmutable     = apperr.New(apperr.KindForbidden, "the account owner cannot be changed here")
)

// Role is a user's role within its tenant.
type Role string

const (
	// RoleOwner created the tenant. Exactly one per tenant.
	RoleOwner Role = "owner"
	// RoleManager is a sub-user with managerial access in the product.
	RoleManager Role = "manager"
	// RoleTechnician is the default sub-user role.
	RoleTechnician Role = "technician"
	// RoleSuperadmin is the platform operator. Never persisted.
	RoleSuperadmin Role = "superadmin"
)

// Assignable reports whether r may be given to a sub-user.
func (r Role) Assignable() bool {
	return r == RoleManager || r == RoleTechnician
}

// User represents a person who signs in on behalf of a tenant
type User struct {
	ID                   string     `json:"id"`
	TenantID             string     `json:"tenant_id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Role                 Role       `json:"role"`
	PasswordHash         string     `json:"-"`
	FailedLoginAttempts  int        `json:"-"`
	LockedUntil          *time.Time `json:"-"`
	ResetTokenHash       string     `json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a user. Emails are unique across tenants.
	Create(ctx context.Context, user *User) error

	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by its normalized email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetOwner retrieves the owner of a tenant
	GetOwner(ctx context.Context, tenantID string) (*User, error)

	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)

	// Update updates profile, role, password and reset token fields
	Update(ctx context.Context, user *User) error

	// UpdateLockout updates user lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// Delete removes a user of the given tenant
	Delete(ctx context.Context, tenantID, id string) error

	// GetByResetToken retrieves the user holding an unexpired reset token hash
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
}
