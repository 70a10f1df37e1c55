package reconciliation

import (
	"context"

	"github.com/frahmantamala/paypal-activation/internal/account"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/session"
)

// Processor is the part of the PayPal REST client the redirect path needs.
type Processor interface {
	GetPayment(ctx context.Context, paymentID string) (*paypal.Payment, error)
	ExecutePayment(ctx context.Context, paymentID string, exec paypal.PaymentExecution) (*paypal.Payment, error)
}

type Verifier interface {
	Verify(ctx context.Context, fields []paypal.Field) (bool, error)
}

// AccountWriter holds the two atomic account updates.
type AccountWriter interface {
	Activate(ctx context.Context, id string, a account.Activation) (bool, error)
	LogPaymentStatus(ctx context.Context, id string, status string) (bool, error)
}

// PendingPayments hands out a session's pending payment at most once.
type PendingPayments interface {
	Take(ctx context.Context, sessionID string) (*session.PendingPayment, error)
}

// SessionContext identifies the browser session a redirect arrived on.
type SessionContext struct {
	SessionID string
	AccountID string
}

// RedirectCallback is what the processor appends to the return or cancel url.
type RedirectCallback struct {
	Approved bool
	PayerID  string
}

type RedirectKind string

const (
	RedirectExit             RedirectKind = "exit"
	RedirectNothingToExecute RedirectKind = "nothing_to_execute"
	RedirectRejected         RedirectKind = "rejected"
	RedirectSettled          RedirectKind = "settled"
)

// Rejection is a processor error whose name is one of the known error codes.
type Rejection struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type RedirectOutcome struct {
	Kind          RedirectKind
	AccountID     string
	PaymentID     string
	TransactionID string
	// Status is the payment status written to the account on a settled redirect.
	Status    string
	Activated bool
	Rejection *Rejection
}

// EndSession reports whether the caller should log the user out.
func (o RedirectOutcome) EndSession() bool {
	return o.Kind == RedirectExit
}

type NotificationKind string

const (
	NotificationDiscarded    NotificationKind = "discarded"
	NotificationIgnored      NotificationKind = "ignored"
	NotificationStatusLogged NotificationKind = "status_logged"
	NotificationActivated    NotificationKind = "activated"
)

type NotificationOutcome struct {
	Kind          NotificationKind
	AccountID     string
	Status        string
	TransactionID string
	// Changed is false when the account already held this state.
	Changed bool
}
