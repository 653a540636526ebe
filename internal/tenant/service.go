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

package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"golang.org/x/sync/errgroup"
)

// Owner is the account owner shown next to a tenant in admin listings.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OwnerLookup resolves the owner user of a tenant.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, tenantID string) (*Owner, error)
}

// Listing is a tenant with its owner contact.
type Listing struct {
	*Tenant
	Owner *Owner `json:"owner,omitempty"`
}

// ApprovalInput selects the request an administrator approves. A reference
// code wins over a type; with only a type the oldest pending request of
// that type is chosen.
type ApprovalInput struct {
	ReferenceCode string
	Type          RequestType
	TargetURL     string
}

// Service provides tenant administration business logic
type Service struct {
	repo        Repository
	owners      OwnerLookup
	auditLogger audit.Logger
	clock       clock.Clock
}

// NewService creates a new tenant service
func NewService(repo Repository, owners OwnerLookup, auditLogger audit.Logger, clk clock.Clock) *Service {
	return &Service{
		repo:        repo,
		owners:      owners,
		auditLogger: auditLogger,
		clock:       clk,
	}
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByReference returns the tenant owning a billing reference code.
func (s *Service) FindByReference(ctx context.Context, ref string) (*Tenant, error) {
	return s.repo.GetByReference(ctx, ref)
}

// ListTenants lists tenants with their owners, newest first.
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Listing, error) {
	tenants, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	listings := make([]*Listing, len(tenants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, t := range tenants {
		i, t := i, t
		listings[i] = &Listing{Tenant: t}
		if s.owners == nil {
			continue
		}
		g.Go(func() error {
			owner, err := s.owners.OwnerOf(gctx, t.ID)
			if err != nil {
				// Pending pre-registrations have no owner yet.
				slog.DebugContext(gctx, "tenant owner not resolved", logger.TenantID(t.ID), logger.Error(err))
				return nil
			}
			listings[i].Owner = owner
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

// SetStatus changes a tenant's status on behalf of an administrator.
func (s *Service) SetStatus(ctx context.Context, actorID, tenantID string, status Status) (*Tenant, error) {
	var from Status
	t, err := Mutate(ctx, s.repo, tenantID, func(t *Tenant) error {
		from = t.Status
		return t.SetStatus(status)
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantStatusChanged,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: map[string]any{"from": string(from), "to": string(status)},
	})
	return t, nil
}

// ApproveRequest approves a billing request. Extensions take effect at once;
// upgrades move to waiting_payment pointing at the dedicated instance.
func (s *Service) ApproveRequest(ctx context.Context, actorID, tenantID string, in ApprovalInput) (*Tenant, error) {
	var approved Request
	t, err := Mutate(ctx, s.repo, tenantID, func(t *Tenant) error {
		idx := locate(t, in.ReferenceCode, in.Type)
		if idx < 0 {
			return ErrRequestNotFound
		}
		approved = t.Requests[idx]
		return t.Approve(idx, in.TargetURL, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRequestApproved,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: string(approved.Type()),
		Metadata: map[string]any{
			"reference_code": Base(approved).ReferenceCode,
			"status":         string(Base(approved).Status),
		},
	})
	return t, nil
}

// RejectRequest rejects a billing request. Rejected requests are never
// settled by payments.
func (s *Service) RejectRequest(ctx context.Context, actorID, tenantID string, in ApprovalInput) (*Tenant, error) {
	var rejected Request
	t, err := Mutate(ctx, s.repo, tenantID, func(t *Tenant) error {
		idx := locate(t, in.ReferenceCode, in.Type)
		if idx < 0 {
			return ErrRequestNotFound
		}
		rejected = t.Requests[idx]
		return t.Reject(idx, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRequestRejected,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: string(rejected.Type()),
		Metadata: map[string]any{"reference_code": Base(rejected).ReferenceCode},
	})
	return t, nil
}

// SetBillingDay stores the day of month the owner wants to be billed on.
func (s *Service) SetBillingDay(ctx context.Context, actorID, tenantID string, day int) (*Tenant, error) {
	if day < 1 || day > 28 {
		return nil, ErrInvalidPaymentDay
	}
	t, err := Mutate(ctx, s.repo, tenantID, func(t *Tenant) error {
		return t.SetPaymentDay(day)
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeBillingDaySet,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: map[string]any{"day": day},
	})
	return t, nil
}

// ExpireTrials marks every trial past its end date as expired and returns
// how many tenants changed.
func (s *Service) ExpireTrials(ctx context.Context) (int, error) {
	now := s.clock.Now()
	overdue, err := s.repo.ListTrialsEndedBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue trials: %w", err)
	}

	expired := 0
	for _, candidate := range overdue {
		changed := false
		_, err := Mutate(ctx, s.repo, candidate.ID, func(t *Tenant) error {
			changed = t.ExpireTrial(now)
			return nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to expire trial", logger.TenantID(candidate.ID), logger.Error(err))
			continue
		}
		if !changed {
			continue
		}
		expired++
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeTenantStatusChanged,
			TenantID: candidate.ID,
			ActorID:  "system",
			Resource: "tenant",
			Metadata: map[string]any{"from": string(StatusTrial), "to": string(StatusExpired)},
		})
	}
	return expired, nil
}

func locate(t *Tenant, ref string, typ RequestType) int {
	if ref != "" {
		return t.Requests.IndexOfReference(ref)
	}
	return t.Requests.IndexOf(typ, RequestPending)
}
