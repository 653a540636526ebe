package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
)

// ForgotPassword emails a reset link. Unknown addresses succeed silently so
// the endpoint does not reveal which emails are registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return ErrFieldsRequired
	}
	u, resetToken, err := s.users.IssueResetToken(ctx, email)
	if errors.Is(err, identity.ErrUserNotFound) {
		slog.InfoContext(ctx, "password reset requested for unknown email", logger.Component("account"))
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, u.Email, resetToken); err != nil {
		slog.ErrorContext(ctx, "failed to send password reset email",
			logger.UserID(u.ID),
			logger.Error(err),
		)
		if apperr.KindOf(err) == apperr.KindConfiguration {
			return err
		}
		return ErrRecoveryEmailFailed
	}
	return nil
}

// ValidateResetToken reports whether a reset link is still usable.
func (s *Service) ValidateResetToken(ctx context.Context, resetToken string) error {
	_, err := s.users.ValidateResetToken(ctx, resetToken)
	return err
}

// ResetPassword sets a new password through a reset link.
func (s *Service) ResetPassword(ctx context.Context, resetToken, password string) error {
	if password == "" {
		return ErrFieldsRequired
	}
	return s.users.ResetPassword(ctx, resetToken, password)
}
