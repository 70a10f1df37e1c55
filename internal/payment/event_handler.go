package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/paypal-activation/internal/core/events"
)

type PendingPurger interface {
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
}

// EventHandler reacts to reconciliation events after the request that caused them.
type EventHandler struct {
	pending PendingPurger
	logger  *slog.Logger
}

func NewEventHandler(pending PendingPurger, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		pending: pending,
		logger:  logger,
	}
}

// HandleAccountActivated drops the account's other pending payments so a second
// approval tab cannot execute another charge.
func (h *EventHandler) HandleAccountActivated(ctx context.Context, event events.Event) error {
	activated, ok := event.(*events.AccountActivatedEvent)
	if !ok {
		h.logger.Error("invalid event type for account activated handler", "event_type", event.EventType())
		return fmt.Errorf("expected AccountActivatedEvent, got %T", event)
	}

	n, err := h.pending.DeleteByAccount(ctx, activated.AccountID)
	if err != nil {
		return fmt.Errorf("purge pending payments for account %s: %w", activated.AccountID, err)
	}

	h.logger.Info("pending payments purged after activation",
		"account_id", activated.AccountID,
		"source", activated.Source,
		"purged", n,
		"event_id", activated.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeAccountActivated, h.HandleAccountActivated)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{events.EventTypeAccountActivated})
}
