package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureProvider struct {
	to      []string
	subject string
	body    string
	err     error
}

func (c *captureProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	c.to, c.subject, c.body = to, subject, htmlBody
	return c.err
}

func TestMailer_SendCompleteRegistration(t *testing.T) {
	p := &captureProvider{}
	m := NewMailer(p, "https://app.fluxoclean.test/")

	require.NoError(t, m.SendCompleteRegistration(context.Background(), "owner@acme.io", "Acme <Ltda>", "abc123"))
	assert.Equal(t, []string{"owner@acme.io"}, p.to)
	assert.Contains(t, p.body, "https://app.fluxoclean.test/complete-registration?token=abc123")
	assert.Contains(t, p.body, "Acme &lt;Ltda&gt;")
}

func TestMailer_SendPasswordReset(t *testing.T) {
	p := &captureProvider{err: errors.New("relay down")}
	m := NewMailer(p, "https://app.fluxoclean.test")

	err := m.SendPasswordReset(context.Background(), "owner@acme.io", "deadbeef")
	require.Error(t, err)
	assert.Contains(t, p.body, "https://app.fluxoclean.test/reset-password/deadbeef")
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("FluxoClean <no-reply@fluxoclean.com.br>", []string{"a@b.c"}, "Hi", "<p>x</p>"))
	assert.True(t, strings.HasPrefix(msg, "From: FluxoClean <no-reply@fluxoclean.com.br>\r\n"))
	assert.Contains(t, msg, "\r\n\r\n<p>x</p>")
	assert.Equal(t, "no-reply@fluxoclean.com.br", envelopeAddress("FluxoClean <no-reply@fluxoclean.com.br>"))
	assert.Equal(t, "plain@fluxoclean.com.br", envelopeAddress(" plain@fluxoclean.com.br "))
}

// TestPurpose: Validates that an unconfigured mail provider refuses delivery.
// Scope: Unit Test
// Security: Callers never report a reset link as sent when no transport exists
// Expected: Send fails with ErrNotConfigured of kind configuration.
// Test Case ID: MAIL-01
func TestUnconfiguredProvider(t *testing.T) {
	m := NewMailer(UnconfiguredProvider{}, "https://app.fluxoclean.test")

	err := m.SendPasswordReset(context.Background(), "owner@acme.io", "deadbeef")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}
