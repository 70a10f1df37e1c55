package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/core/events"
	"github.com/frahmantamala/paypal-activation/internal/notification"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/session"
)

type Service struct {
	accounts     AccountReader
	builder      *paypal.IntentBuilder
	creator      PaymentCreator
	pending      PendingStore
	reconciler   Reconciler
	audit        AuditRecorder
	publisher    events.Publisher
	options      internal.PaymentOptions
	redirectURLs paypal.RedirectURLs
	logger       *slog.Logger
}

func NewService(
	accounts AccountReader,
	builder *paypal.IntentBuilder,
	creator PaymentCreator,
	pending PendingStore,
	reconciler Reconciler,
	audit AuditRecorder,
	publisher events.Publisher,
	options internal.PaymentOptions,
	baseURL string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:     accounts,
		builder:      builder,
		creator:      creator,
		pending:      pending,
		reconciler:   reconciler,
		audit:        audit,
		publisher:    publisher,
		options:      options,
		redirectURLs: paypal.RedirectURLsFor(baseURL),
		logger:       logger,
	}
}

// StartCheckout creates a processor payment for the account and parks it on the
// session until the payer comes back.
func (s *Service) StartCheckout(ctx context.Context, accountID, sessionID string) (*CheckoutResult, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("Failed to load account", err)
	}
	if acct.IsActive {
		return nil, internal.ErrAccountAlreadyActive
	}

	intent, err := s.builder.Build(paypal.AccountContext{AccountID: acct.ID}, s.options, s.redirectURLs)
	if err != nil {
		return nil, internal.NewInternalError("Failed to build payment", err)
	}

	created, err := s.creator.CreatePayment(ctx, intent)
	if err != nil {
		s.logger.Error("failed to create payment", "account_id", acct.ID, "error", err)
		appErr := internal.NewExternalError("Payment processor unavailable", err)
		var apiErr *paypal.APIError
		if errors.As(err, &apiErr) && apiErr.Name != "" {
			appErr = appErr.WithDetails(reconciliation.Rejection{Name: apiErr.Name, Message: apiErr.Message})
		}
		return nil, appErr
	}

	approvalURL, ok := paypal.ApprovalURL(created)
	if !ok {
		s.logger.Error("created payment has no approval url", "account_id", acct.ID, "payment_id", created.ID)
		return nil, internal.ErrApprovalURLMissing
	}

	if err := s.pending.Store(ctx, sessionID, session.PendingPayment{PaymentID: created.ID, AccountID: acct.ID}); err != nil {
		return nil, internal.NewSessionStoreError("Failed to store pending payment", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewCheckoutStartedEvent(acct.ID, created.ID)); err != nil {
			s.logger.Error("failed to publish checkout started", "error", err)
		}
	}

	s.logger.Info("checkout started", "account_id", acct.ID, "payment_id", created.ID)
	return &CheckoutResult{PaymentID: created.ID, ApprovalURL: approvalURL}, nil
}

func (s *Service) ConfirmRedirect(ctx context.Context, sc reconciliation.SessionContext, cb reconciliation.RedirectCallback) (*reconciliation.RedirectOutcome, error) {
	return s.reconciler.ConfirmFromRedirect(ctx, sc, cb)
}

// HandleNotification parses a raw IPN, reconciles it and writes the audit row.
// Notifications that were not verified leave no trace.
func (s *Service) HandleNotification(ctx context.Context, raw string) (*reconciliation.NotificationOutcome, error) {
	n, err := paypal.ParseNotification(raw)
	if err != nil {
		return nil, internal.NewValidationError("Malformed notification body", internal.ErrCodeValidationFailed).WithCause(err)
	}

	out, err := s.reconciler.ConfirmFromNotification(ctx, n)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); !ok || appErr.Type != internal.ErrorTypeExternal {
			s.record(ctx, n, notification.OutcomeFailed)
		}
		return nil, err
	}

	if out.Kind != reconciliation.NotificationDiscarded {
		s.record(ctx, n, string(out.Kind))
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, n *paypal.Notification, outcome string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, n, outcome)
}
