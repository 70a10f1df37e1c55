package payment

import (
	"context"
	"net/http"

	"github.com/frahmantamala/paypal-activation/internal/account"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/session"
)

// CheckoutResult is what the browser needs to continue at the processor.
type CheckoutResult struct {
	PaymentID   string
	ApprovalURL string
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, p *paypal.Payment) (*paypal.Payment, error)
}

type AccountReader interface {
	FindByID(ctx context.Context, id string) (*account.Account, error)
}

type PendingStore interface {
	Store(ctx context.Context, sessionID string, p session.PendingPayment) error
}

type Reconciler interface {
	ConfirmFromRedirect(ctx context.Context, sc reconciliation.SessionContext, cb reconciliation.RedirectCallback) (*reconciliation.RedirectOutcome, error)
	ConfirmFromNotification(ctx context.Context, n *paypal.Notification) (*reconciliation.NotificationOutcome, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, n *paypal.Notification, outcome string)
}

// SessionManager owns the browser session cookie.
type SessionManager interface {
	Start(w http.ResponseWriter, accountID string) (*session.Session, error)
	Read(r *http.Request) (*session.Session, error)
	End(w http.ResponseWriter)
	SetFlash(w http.ResponseWriter, f session.Flash) error
	TakeFlash(w http.ResponseWriter, r *http.Request) *session.Flash
}

type ServiceAPI interface {
	StartCheckout(ctx context.Context, accountID, sessionID string) (*CheckoutResult, error)
	ConfirmRedirect(ctx context.Context, sc reconciliation.SessionContext, cb reconciliation.RedirectCallback) (*reconciliation.RedirectOutcome, error)
	HandleNotification(ctx context.Context, raw string) (*reconciliation.NotificationOutcome, error)
}
