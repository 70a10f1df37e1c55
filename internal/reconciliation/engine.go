package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/account"
	"github.com/frahmantamala/paypal-activation/internal/core/events"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
)

// Engine merges the browser redirect and the IPN into one account transition.
// Both paths end in AccountWriter.Activate, which is a single guarded UPDATE, so the
// engine itself holds no locks and keeps no state between calls.
type Engine struct {
	processor  Processor
	verifier   Verifier
	accounts   AccountWriter
	pending    PendingPayments
	publisher  events.Publisher
	errorCodes paypal.ErrorCodes
	logger     *slog.Logger
}

func NewEngine(
	processor Processor,
	verifier Verifier,
	accounts AccountWriter,
	pending PendingPayments,
	publisher events.Publisher,
	errorCodes paypal.ErrorCodes,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if errorCodes.Len() == 0 {
		errorCodes = paypal.DefaultErrorCodes()
	}
	return &Engine{
		processor:  processor,
		verifier:   verifier,
		accounts:   accounts,
		pending:    pending,
		publisher:  publisher,
		errorCodes: errorCodes,
		logger:     logger,
	}
}

func (e *Engine) ConfirmFromRedirect(ctx context.Context, sc SessionContext, cb RedirectCallback) (*RedirectOutcome, error) {
	log := logger.From(ctx).With("session_account_id", sc.AccountID)

	if cb.Approved && strings.TrimSpace(cb.PayerID) == "" {
		return nil, internal.NewValidationFieldError("PayerID", "PayerID is required when the payment was approved", internal.ErrCodeValidationFailed)
	}

	// Taken before any processor call, so a second callback on the same session finds
	// nothing to execute.
	pending, err := e.pending.Take(ctx, sc.SessionID)
	if err != nil {
		return nil, internal.NewSessionStoreError("Failed to take pending payment", err)
	}

	if !cb.Approved {
		out := &RedirectOutcome{Kind: RedirectExit, AccountID: sc.AccountID}
		if pending != nil {
			out.AccountID = pending.AccountID
			out.PaymentID = pending.PaymentID
		}
		log.Info("payer cancelled approval", "payment_id", out.PaymentID)
		e.publish(ctx, events.NewCheckoutCancelledEvent(out.AccountID, out.PaymentID))
		return out, nil
	}

	if pending == nil {
		log.Info("redirect without pending payment")
		return &RedirectOutcome{Kind: RedirectNothingToExecute, AccountID: sc.AccountID}, nil
	}

	if sc.AccountID != "" && pending.AccountID != sc.AccountID {
		log.Warn("pending payment belongs to another account",
			"payment_id", pending.PaymentID, "pending_account_id", pending.AccountID)
		return &RedirectOutcome{Kind: RedirectNothingToExecute, AccountID: sc.AccountID}, nil
	}

	log = log.With("account_id", pending.AccountID, "payment_id", pending.PaymentID)

	payment, err := e.processor.GetPayment(ctx, pending.PaymentID)
	if err != nil {
		return e.processorFailure(ctx, log, pending.AccountID, pending.PaymentID, "fetch", err)
	}

	executed, err := e.processor.ExecutePayment(ctx, payment.ID, paypal.PaymentExecution{PayerID: cb.PayerID})
	if err != nil {
		return e.processorFailure(ctx, log, pending.AccountID, pending.PaymentID, "execute", err)
	}

	paymentID := executed.ID
	if paymentID == "" {
		paymentID = payment.ID
	}
	out := &RedirectOutcome{
		Kind:          RedirectSettled,
		AccountID:     pending.AccountID,
		PaymentID:     paymentID,
		TransactionID: paymentID,
		Status:        paypal.StatusCompleted,
	}

	sale, hasSale := executed.Sale()
	if hasSale {
		out.TransactionID = sale.ID
		if sale.State != "" && !strings.EqualFold(sale.State, paypal.SaleStateCompleted) {
			// The IPN will report completion later; until then only the status is known.
			out.Status = sale.State
			changed, err := e.accounts.LogPaymentStatus(ctx, pending.AccountID, sale.State)
			if err != nil {
				return nil, accountWriteFailure(err)
			}
			if changed {
				e.publish(ctx, events.NewPaymentStatusLoggedEvent(pending.AccountID, sale.State))
			}
			log.Info("payment executed, sale not completed yet", "sale_id", sale.ID, "sale_state", sale.State)
			return out, nil
		}
	}

	details, err := json.Marshal(executed)
	if err != nil {
		return nil, internal.NewInternalError("Failed to encode execution response", err)
	}

	changed, err := e.accounts.Activate(ctx, pending.AccountID, account.Activation{
		TransactionID: out.TransactionID,
		PaymentStatus: paypal.StatusCompleted,
		Details:       details,
		PaymentID:     &paymentID,
		Source:        account.SourceRedirect,
	})
	if err != nil {
		return nil, accountWriteFailure(err)
	}
	out.Activated = changed
	if changed {
		e.publish(ctx, events.NewAccountActivatedEvent(pending.AccountID, out.TransactionID, string(account.SourceRedirect)))
	}

	log.Info("payment settled from redirect", "transaction_id", out.TransactionID, "activated", changed)
	return out, nil
}

func (e *Engine) ConfirmFromNotification(ctx context.Context, n *paypal.Notification) (*NotificationOutcome, error) {
	log := logger.From(ctx)

	verified, err := e.verifier.Verify(ctx, n.Fields)
	if err != nil {
		return nil, internal.NewExternalError("Notification verification unavailable", err)
	}
	if !verified {
		e.publish(ctx, events.NewNotificationDiscardedEvent())
		return &NotificationOutcome{Kind: NotificationDiscarded}, nil
	}

	if n.PaymentStatus == nil {
		log.Debug("notification without payment_status ignored")
		return &NotificationOutcome{Kind: NotificationIgnored}, nil
	}
	status := *n.PaymentStatus

	accountID, ok := n.AccountID()
	if !ok {
		log.Warn("notification carries no account reference", "payment_status", status)
		return &NotificationOutcome{Kind: NotificationIgnored, Status: status}, nil
	}
	log = log.With("account_id", accountID, "payment_status", status)

	if status != paypal.StatusCompleted {
		changed, err := e.accounts.LogPaymentStatus(ctx, accountID, status)
		if err != nil {
			return nil, accountWriteFailure(err)
		}
		if changed {
			e.publish(ctx, events.NewPaymentStatusLoggedEvent(accountID, status))
		}
		log.Info("payment status logged", "changed", changed)
		return &NotificationOutcome{Kind: NotificationStatusLogged, AccountID: accountID, Status: status, Changed: changed}, nil
	}

	if n.TxnID == nil || *n.TxnID == "" {
		// Activating without a transaction id would leave the account half written.
		log.Warn("completed notification without txn_id ignored")
		return &NotificationOutcome{Kind: NotificationIgnored, AccountID: accountID, Status: status}, nil
	}

	details, err := n.AuditJSON()
	if err != nil {
		return nil, internal.NewInternalError("Failed to encode notification", err)
	}

	changed, err := e.accounts.Activate(ctx, accountID, account.Activation{
		TransactionID: *n.TxnID,
		PaymentStatus: paypal.StatusCompleted,
		Details:       details,
		Source:        account.SourceNotification,
	})
	if err != nil {
		return nil, accountWriteFailure(err)
	}
	if changed {
		e.publish(ctx, events.NewAccountActivatedEvent(accountID, *n.TxnID, string(account.SourceNotification)))
	}

	log.Info("account activated from notification",
		"transaction_id", *n.TxnID,
		"gross", deref(n.Gross),
		"currency", deref(n.Currency),
		"changed", changed)
	return &NotificationOutcome{
		Kind:          NotificationActivated,
		AccountID:     accountID,
		Status:        status,
		TransactionID: *n.TxnID,
		Changed:       changed,
	}, nil
}

// processorFailure turns a known processor error name into a Rejected outcome. Every
// other failure is an upstream error for this attempt.
func (e *Engine) processorFailure(ctx context.Context, log *slog.Logger, accountID, paymentID, step string, err error) (*RedirectOutcome, error) {
	var apiErr *paypal.APIError
	if errors.As(err, &apiErr) && e.errorCodes.Contains(apiErr.Name) {
		log.Warn("payment rejected by processor", "step", step, "name", apiErr.Name, "debug_id", apiErr.DebugID)
		e.publish(ctx, events.NewPaymentRejectedEvent(accountID, paymentID, apiErr.Name, apiErr.Message))
		return &RedirectOutcome{
			Kind:      RedirectRejected,
			AccountID: accountID,
			PaymentID: paymentID,
			Rejection: &Rejection{Name: apiErr.Name, Message: apiErr.Message},
		}, nil
	}

	log.Error("processor call failed", "step", step, "error", err)
	return nil, internal.NewExternalError("Payment processor unavailable", err)
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func accountWriteFailure(err error) error {
	if errors.Is(err, internal.ErrAccountNotFound) {
		return internal.ErrAccountNotFound
	}
	return internal.NewAccountWriteError("Failed to update account", err)
}
