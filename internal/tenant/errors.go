package tenant

import (
	"errors"

	"github.com/fluxoclean/controlplane/internal/apperr"
)

// Domain errors
var (
	ErrTenantNotFound      = apperr.New(apperr.KindNotFound, "tenant not found")
	ErrRequestNotFound     = apperr.New(apperr.KindNotFound, "billing request not found")
	ErrTenantConflict      = apperr.New(apperr.KindConflict, "document, email or slug already registered")
	ErrVersionConflict     = apperr.New(apperr.KindConflict, "tenant was modified concurrently")
	ErrIllegalTransition   = apperr.New(apperr.KindConflict, "request cannot move to the requested state")
	ErrIllegalStatus       = apperr.New(apperr.KindValidation, "tenant status change not allowed")
	ErrInvalidStatus       = apperr.New(apperr.KindValidation, "invalid tenant status")
	ErrInvalidPaymentDay   = apperr.New(apperr.KindValidation, "billing day must be between 1 and 28")
	ErrTargetURLRequired   = apperr.New(apperr.KindValidation, "target URL is required to approve an upgrade")
	ErrExtensionLimit      = apperr.New(apperr.KindConflict, "trial extension limit reached")
	ErrUpgradeInProgress   = apperr.New(apperr.KindConflict, "an upgrade request is already in progress")
	ErrNoMigrationPending  = apperr.New(apperr.KindConflict, "no upgrade is awaiting payment")
	ErrRegistrationExpired = apperr.New(apperr.KindValidation, "registration link is invalid or already used")
)

func isVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
