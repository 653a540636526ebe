package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Mailer renders and sends the product's transactional messages.
type Mailer struct {
	provider Provider
	appURL   string
}

// NewMailer creates a mailer. appURL is the front-end base for links.
func NewMailer(provider Provider, appURL string) *Mailer {
	return &Mailer{provider: provider, appURL: strings.TrimRight(appURL, "/")}
}

// SendCompleteRegistration sends the link that finishes a pre-registration.
func (m *Mailer) SendCompleteRegistration(ctx context.Context, to, companyName, token string) error {
	link := m.appURL + "/complete-registration?token=" + url.QueryEscape(token)
	return m.send(ctx, to, "Finalize seu cadastro - FluxoClean", "complete_registration.html", map[string]string{
		"CompanyName": companyName,
		"Link":        link,
	})
}

// SendPasswordReset sends a password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	link := m.appURL + "/reset-password/" + url.PathEscape(token)
	return m.send(ctx, to, "Recuperação de Senha - FluxoClean", "reset_password.html", map[string]string{
		"Link": link,
	})
}

func (m *Mailer) send(ctx context.Context, to, subject, name string, data any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return m.provider.Send(ctx, []string{to}, subject, body.String())
}
