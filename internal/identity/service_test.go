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

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Secure#Pass1"

func newService(clk clock.Clock) (*identity.Service, *memory.UserRepository) {
	repo := memory.NewUserRepository()
	hasher := identity.NewPasswordHasher(16*1024, 1, 1, 16, 32)
	return identity.NewService(repo, hasher, audit.NopLogger{}, clk, 3, 5*time.Minute), repo
}

// TestPurpose: Validates the user authentication flow, including success, failure, and account lockout after multiple failed attempts.
// Scope: Unit Test
// Security: Authentication mechanisms and Brute-force protection (lockout)
// Expected: Successful login for correct credentials, error for wrong credentials, and account lockout after the threshold until it expires.
// Test Case ID: IDN-01
func TestIdentity_Service_Authenticate(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	s, _ := newService(clk)
	ctx := context.Background()

	user, err := s.CreateOwner(ctx, "tenant-1", "Test User", " Test@Example.com ", strongPassword)
	if err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}
	if user.Email != "test@example.com" {
		t.Errorf("expected normalized email, got %s", user.Email)
	}

	authed, err := s.Authenticate(ctx, "TEST@example.com", strongPassword)
	if err != nil {
		t.Fatalf("expected success, got err: %v", err)
	}
	if authed.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, authed.ID)
	}

	_, err = s.Authenticate(ctx, "test@example.com", "WrongPassword1!")
	if err != identity.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = s.Authenticate(ctx, "nobody@example.com", strongPassword)
	if err != identity.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	s.Authenticate(ctx, "test@example.com", "WrongPassword1!")          // Total failed: 2
	_, err = s.Authenticate(ctx, "test@example.com", "WrongPassword1!") // Total failed: 3 (Threshold met)
	if err != identity.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for 3rd failed attempt, got %v", err)
	}

	// 4th attempt should be locked out
	_, err = s.Authenticate(ctx, "test@example.com", strongPassword)
	if err != identity.ErrAccountLocked {
		t.Errorf("expected ErrAccountLocked, got %v", err)
	}

	clk.Advance(5*time.Minute + time.Second)
	if _, err := s.Authenticate(ctx, "test@example.com", strongPassword); err != nil {
		t.Errorf("expected success after lockout expired, got %v", err)
	}
}

// TestPurpose: Validates that creating a user fails if the email is already registered in any tenant.
// Scope: Unit Test
// Security: Data Integrity and Unique Constraint Enforcement
// Expected: ErrUserAlreadyExists when the email is already registered; weak passwords and bad emails are validation errors.
// Test Case ID: IDN-02
func TestIdentity_Service_CreateConflict(t *testing.T) {
	s, _ := newService(clock.Real{})
	ctx := context.Background()

	_, err := s.CreateOwner(ctx, "tenant-1", "Owner", "conflict@example.com", strongPassword)
	require.NoError(t, err)

	_, err = s.CreateSubUser(ctx, "actor", "tenant-2", identity.SubUserInput{Name: "Other", Email: "CONFLICT@example.com", Password: strongPassword})
	require.ErrorIs(t, err, identity.ErrUserAlreadyExists)

	_, err = s.CreateSubUser(ctx, "actor", "tenant-1", identity.SubUserInput{Name: "Weak", Email: "weak@example.com", Password: "password"})
	require.ErrorIs(t, err, identity.ErrWeakPassword)

	_, err = s.CreateSubUser(ctx, "actor", "tenant-1", identity.SubUserInput{Name: "Bad", Email: "not-an-email", Password: strongPassword})
	require.ErrorIs(t, err, identity.ErrInvalidEmail)
}

// TestPurpose: Validates sub-user management boundaries.
// Scope: Unit Test
// Security: Owners manage only their own tenant's sub-users and cannot alter the owner account
// Expected: Default role is technician; foreign users are not found; the owner is immutable; superadmin is not assignable.
// Test Case ID: IDN-03
func TestIdentity_Service_SubUsers(t *testing.T) {
	s, _ := newService(clock.Real{})
	ctx := context.Background()

	owner, err := s.CreateOwner(ctx, "t1", "Owner", "owner@acme.io", strongPassword)
	require.NoError(t, err)
	sub, err := s.CreateSubUser(ctx, owner.ID, "t1", identity.SubUserInput{Name: "Tech", Email: "tech@acme.io", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleTechnician, sub.Role)

	_, err = s.CreateSubUser(ctx, owner.ID, "t1", identity.SubUserInput{Name: "Root", Email: "root@acme.io", Password: strongPassword, Role: identity.RoleSuperadmin})
	require.ErrorIs(t, err, identity.ErrInvalidRole)

	updated, err := s.UpdateSubUser(ctx, owner.ID, "t1", sub.ID, identity.SubUserInput{Role: identity.RoleManager, Email: "lead@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleManager, updated.Role)
	assert.Equal(t, "lead@acme.io", updated.Email)
	assert.Equal(t, "Tech", updated.Name)

	_, err = s.UpdateSubUser(ctx, "intruder", "t2", sub.ID, identity.SubUserInput{Name: "Hijacked"})
	require.ErrorIs(t, err, identity.ErrUserNotFound)
	require.ErrorIs(t, s.DeleteSubUser(ctx, owner.ID, "t1", owner.ID), identity.ErrOwnerImmutable)

	users, err := s.ListUsers(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, s.DeleteSubUser(ctx, owner.ID, "t1", sub.ID))
	_, err = s.GetUser(ctx, sub.ID)
	require.ErrorIs(t, err, identity.ErrUserNotFound)

	o, err := s.OwnerOf(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", o.Email)
}

// TestPurpose: Validates the password reset flow.
// Scope: Unit Test
// Security: Reset tokens are stored hashed, expire after one hour and work once
// Expected: A fresh token validates and resets the password; reuse, expiry and unknown tokens fail.
// Test Case ID: IDN-04
func TestIdentity_Service_ResetPassword(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	s, repo := newService(clk)
	ctx := context.Background()

	_, err := s.CreateOwner(ctx, "t1", "Owner", "owner@acme.io", strongPassword)
	require.NoError(t, err)

	_, _, err = s.IssueResetToken(ctx, "ghost@acme.io")
	require.ErrorIs(t, err, identity.ErrUserNotFound)

	user, token, err := s.IssueResetToken(ctx, "owner@acme.io")
	require.NoError(t, err)
	assert.Len(t, token, 40)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored.ResetTokenHash)

	_, err = s.ValidateResetToken(ctx, token)
	require.NoError(t, err)

	require.ErrorIs(t, s.ResetPassword(ctx, token, "weak"), identity.ErrWeakPassword)
	require.NoError(t, s.ResetPassword(ctx, token, "N3w#Password"))
	require.ErrorIs(t, s.ResetPassword(ctx, token, "N3w#Password"), identity.ErrResetTokenInvalid)

	_, err = s.Authenticate(ctx, "owner@acme.io", "N3w#Password")
	require.NoError(t, err)

	_, token, err = s.IssueResetToken(ctx, "owner@acme.io")
	require.NoError(t, err)
	clk.Advance(identity.ResetTokenLifetime + time.Second)
	_, err = s.ValidateResetToken(ctx, token)
	require.ErrorIs(t, err, identity.ErrResetTokenInvalid)
}
