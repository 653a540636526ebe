// Package mail sends transactional email.
package mail

import (
	"context"
	"log/slog"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
)

// ErrNotConfigured is returned for every message when no SMTP relay is set.
var ErrNotConfigured = apperr.New(apperr.KindConfiguration, "email delivery is not configured")

// Provider delivers a rendered message.
type Provider interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// UnconfiguredProvider refuses every message. It stands in when SMTP is not
// configured so callers that depend on delivery fail instead of reporting
// a message that never left.
type UnconfiguredProvider struct{}

func (UnconfiguredProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	slog.WarnContext(ctx, "email delivery not configured, message refused",
		slog.String("subject", subject),
		slog.Int("recipients", len(to)),
		logger.Component("mail"),
	)
	return ErrNotConfigured
}
