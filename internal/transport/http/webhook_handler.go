package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/webhook"
)

// MercadoPagoWebhook acknowledges a gateway notification and processes it in
// the background.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to read webhook body",
			logger.Component("webhook"),
			logger.Error(err),
		)
	}
	n := webhook.ParseNotification(r.Header, r.URL.Query(), body)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))

	h.webhooks.Dispatch(r.Context(), n)
}
