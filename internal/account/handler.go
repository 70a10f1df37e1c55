package account

import (
	"context"
	"net/http"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/transport"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, accountID string) (*Account, error)
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

// GetCurrentAccount handles GET /api/v1/accounts/me
func (h *Handler) GetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	accountID := internal.AccountIDFromContext(r.Context())
	if accountID == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	a, err := h.Service.GetByID(r.Context(), accountID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, a.ToStatusResponse())
}
