package payment

import (
	"io"
	"net/http"

	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/transport"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
)

const (
	maxNotificationBytes = 64 << 10

	ackSuccess = "success"
	ackError   = "error"
)

type WebhookHandler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewWebhookHandler(svc ServiceAPI) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// HandleIPN handles POST /api/v1/paypal/ipn. The raw body is kept byte for byte because
// it is echoed back for verification. When the body is empty the query string is used.
//
// Anything but a "success" body makes the processor redeliver, so failures answer 500.
func (h *WebhookHandler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		log.Error("failed to read notification body", "error", err)
		h.WriteText(w, http.StatusBadRequest, ackError)
		return
	}
	raw := string(body)
	if raw == "" {
		raw = r.URL.RawQuery
	}
	if raw == "" {
		h.WriteText(w, http.StatusOK, "")
		return
	}

	out, err := h.Service.HandleNotification(r.Context(), raw)
	if err != nil {
		log.Error("failed to process notification", "error", err)
		h.WriteText(w, http.StatusInternalServerError, ackError)
		return
	}

	switch out.Kind {
	case reconciliation.NotificationDiscarded:
		h.WriteText(w, http.StatusOK, "")
	default:
		log.Info("notification processed",
			"outcome", out.Kind,
			"account_id", out.AccountID,
			"payment_status", out.Status)
		h.WriteText(w, http.StatusOK, ackSuccess)
	}
}
