package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
)

// Intent is what the tenant wants to pay for.
type Intent string

const (
	IntentMonthly   Intent = "monthly"
	IntentExtension Intent = "extension"
	IntentUpgrade   Intent = "upgrade"
	IntentMigrate   Intent = "migrate"
)

// ErrUnknownIntent is returned for an intent outside the closed set.
var ErrUnknownIntent = apperr.New(apperr.KindValidation, "unknown billing request type")

// Prices of each intent.
type Prices struct {
	Monthly   decimal.Decimal
	Extension decimal.Decimal
	Upgrade   decimal.Decimal
}

// IntakeResult is returned to the client after a request is recorded.
type IntakeResult struct {
	Type          tenant.RequestType `json:"type"`
	ReferenceCode string             `json:"reference_code"`
	Amount        decimal.Decimal    `json:"amount"`
	PreferenceID  string             `json:"preference_id,omitempty"`
	CheckoutURL   string             `json:"init_point,omitempty"`
	PublicKey     string             `json:"public_key,omitempty"`
	Message       string             `json:"message"`
}

// Intake records billing requests and opens gateway checkouts for them.
type Intake struct {
	repo          tenant.Repository
	gateway       Gateway
	prices        Prices
	publicKey     string
	statementName string
	clock         clock.Clock
	auditLogger   audit.Logger
}

// NewIntake creates an intake service.
func NewIntake(repo tenant.Repository, gateway Gateway, prices Prices, publicKey, statementName string, clk clock.Clock, auditLogger audit.Logger) *Intake {
	return &Intake{
		repo:          repo,
		gateway:       gateway,
		prices:        prices,
		publicKey:     publicKey,
		statementName: statementName,
		clock:         clk,
		auditLogger:   auditLogger,
	}
}

// Create records a billing request of the given intent for tenantID.
//
// Guards are checked before the gateway is called, so a refused request never
// opens a checkout. The ledger write re-checks them under CAS.
func (in *Intake) Create(ctx context.Context, tenantID, payerEmail string, intent Intent) (*IntakeResult, error) {
	var (
		res *IntakeResult
		err error
	)
	switch intent {
	case IntentMonthly:
		res, err = in.createExtension(ctx, tenantID, payerEmail, tenant.CycleMonthly)
	case IntentExtension:
		res, err = in.createExtension(ctx, tenantID, payerEmail, tenant.CycleTrial)
	case IntentUpgrade:
		res, err = in.createUpgrade(ctx, tenantID)
	case IntentMigrate:
		res, err = in.createMigration(ctx, tenantID, payerEmail)
	default:
		return nil, ErrUnknownIntent
	}
	if err != nil {
		return nil, err
	}

	in.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRequestCreated,
		TenantID: tenantID,
		Resource: res.ReferenceCode,
		Metadata: map[string]any{
			"intent": string(intent),
			"amount": res.Amount.StringFixed(2),
		},
	})
	slog.InfoContext(ctx, "billing request created",
		logger.TenantID(tenantID),
		logger.ReferenceCode(res.ReferenceCode),
		logger.RequestType(string(res.Type)),
		logger.Component("billing"),
	)
	return res, nil
}

func (in *Intake) createExtension(ctx context.Context, tenantID, payerEmail string, cycle tenant.Cycle) (*IntakeResult, error) {
	t, err := in.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	prefix, amount, title := PrefixExtension, in.prices.Extension, "Trial extension"
	if cycle == tenant.CycleMonthly {
		prefix, amount = PrefixMonthly, in.prices.Monthly
		title = fmt.Sprintf("Monthly subscription (due day %d)", t.MonthlyPaymentDay)
	} else if !t.CanExtend() {
		return nil, tenant.ErrExtensionLimit
	}

	now := in.clock.Now()
	ref, err := NewReference(prefix, now)
	if err != nil {
		return nil, err
	}
	checkout, err := in.gateway.CreateCheckout(ctx, CheckoutInput{
		ReferenceCode: ref,
		Title:         title,
		Description:   in.describe(title, t),
		Amount:        amount,
		PayerEmail:    payerEmail,
	})
	if err != nil {
		return nil, err
	}

	_, err = tenant.Mutate(ctx, in.repo, tenantID, func(t *tenant.Tenant) error {
		return t.AddExtension(&tenant.ExtensionRequest{
			RequestBase: tenant.RequestBase{
				Amount:        amount,
				ReferenceCode: ref,
				PreferenceID:  checkout.PreferenceID,
				RequestedAt:   now,
			},
			Cycle: cycle,
		})
	})
	if err != nil {
		return nil, err
	}

	return &IntakeResult{
		Type:          tenant.RequestExtension,
		ReferenceCode: ref,
		Amount:        amount,
		PreferenceID:  checkout.PreferenceID,
		CheckoutURL:   checkout.CheckoutURL,
		PublicKey:     in.publicKey,
		Message:       "checkout created",
	}, nil
}

func (in *Intake) createUpgrade(ctx context.Context, tenantID string) (*IntakeResult, error) {
	now := in.clock.Now()
	ref, err := NewReference(PrefixUpgrade, now)
	if err != nil {
		return nil, err
	}
	amount := in.prices.Upgrade

	_, err = tenant.Mutate(ctx, in.repo, tenantID, func(t *tenant.Tenant) error {
		return t.AddUpgrade(&tenant.UpgradeRequest{
			RequestBase: tenant.RequestBase{
				Amount:        amount,
				ReferenceCode: ref,
				RequestedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return &IntakeResult{
		Type:          tenant.RequestUpgrade,
		ReferenceCode: ref,
		Amount:        amount,
		Message:       "upgrade requested, awaiting review",
	}, nil
}

func (in *Intake) createMigration(ctx context.Context, tenantID, payerEmail string) (*IntakeResult, error) {
	t, err := in.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.MigrationInProgress() {
		return nil, tenant.ErrNoMigrationPending
	}

	now := in.clock.Now()
	ref, err := NewReference(PrefixMigrate, now)
	if err != nil {
		return nil, err
	}
	amount := in.prices.Upgrade
	title := "Dedicated instance migration"
	checkout, err := in.gateway.CreateCheckout(ctx, CheckoutInput{
		ReferenceCode: ref,
		Title:         title,
		Description:   in.describe(title, t),
		Amount:        amount,
		PayerEmail:    payerEmail,
	})
	if err != nil {
		return nil, err
	}

	_, err = tenant.Mutate(ctx, in.repo, tenantID, func(t *tenant.Tenant) error {
		_, err := t.StartMigration(ref, checkout.PreferenceID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, tenant.ErrNoMigrationPending) {
			slog.WarnContext(ctx, "upgrade settled while migration checkout was opened",
				logger.TenantID(tenantID),
				logger.ReferenceCode(ref),
			)
		}
		return nil, err
	}

	return &IntakeResult{
		Type:          tenant.RequestUpgrade,
		ReferenceCode: ref,
		Amount:        amount,
		PreferenceID:  checkout.PreferenceID,
		CheckoutURL:   checkout.CheckoutURL,
		PublicKey:     in.publicKey,
		Message:       "checkout created",
	}, nil
}

func (in *Intake) describe(title string, t *tenant.Tenant) string {
	if in.statementName == "" {
		return fmt.Sprintf("%s - %s", title, t.Name)
	}
	return fmt.Sprintf("%s %s - %s", in.statementName, title, t.Name)
}
