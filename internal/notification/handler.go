package notification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/transport"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
)

type ServiceAPI interface {
	ListForAccount(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// ListMine handles GET /api/v1/accounts/me/notifications
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	accountID := internal.AccountIDFromContext(r.Context())
	if accountID == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.HandleServiceError(w, internal.NewValidationFieldError("limit", "limit must be a positive integer", internal.ErrCodeValidationFailed))
			return
		}
		limit = n
	}

	entries, err := h.Service.ListForAccount(r.Context(), accountID, limit)
	if err != nil {
		h.HandleServiceError(w, internal.NewInternalError("Failed to list notifications", err))
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": entries,
	})
}
