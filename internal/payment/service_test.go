package payment_test

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/account"
	"github.com/frahmantamala/paypal-activation/internal/core/events"
	"github.com/frahmantamala/paypal-activation/internal/notification"
	"github.com/frahmantamala/paypal-activation/internal/payment"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/session"
)

type mockAccounts struct {
	account *account.Account
	err     error
}

func (m *mockAccounts) FindByID(ctx context.Context, id string) (*account.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.account, nil
}

type mockCreator struct {
	created *paypal.Payment
	err     error
	sent    *paypal.Payment
}

func (m *mockCreator) CreatePayment(ctx context.Context, p *paypal.Payment) (*paypal.Payment, error) {
	m.sent = p
	if m.err != nil {
		return nil, m.err
	}
	return m.created, nil
}

type mockPendingStore struct {
	stored map[string]session.PendingPayment
	err    error
}

func (m *mockPendingStore) Store(ctx context.Context, sessionID string, p session.PendingPayment) error {
	if m.err != nil {
		return m.err
	}
	m.stored[sessionID] = p
	return nil
}

type mockReconciler struct {
	redirect     *reconciliation.RedirectOutcome
	notification *reconciliation.NotificationOutcome
	err          error
	lastSession  reconciliation.SessionContext
	lastCallback reconciliation.RedirectCallback
	lastNotice   *paypal.Notification
}

func (m *mockReconciler) ConfirmFromRedirect(ctx context.Context, sc reconciliation.SessionContext, cb reconciliation.RedirectCallback) (*reconciliation.RedirectOutcome, error) {
	m.lastSession, m.lastCallback = sc, cb
	return m.redirect, m.err
}

func (m *mockReconciler) ConfirmFromNotification(ctx context.Context, n *paypal.Notification) (*reconciliation.NotificationOutcome, error) {
	m.lastNotice = n
	return m.notification, m.err
}

type mockAudit struct {
	outcomes []string
}

func (m *mockAudit) Record(ctx context.Context, n *paypal.Notification, outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

type mockPublisher struct {
	events []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.events = append(m.events, event)
	return nil
}

func approvalPayment() *paypal.Payment {
	return &paypal.Payment{
		ID:    "PAY-1",
		State: "created",
		Links: []paypal.Link{
			{Href: "https://api.sandbox.paypal.com/v1/payments/payment/PAY-1", Rel: "self"},
			{Href: "https://www.sandbox.paypal.com/cgi-bin/webscr?cmd=_express-checkout&token=EC-1", Rel: "approval_url"},
		},
	}
}

var _ = ginkgo.Describe("Service", func() {
	var (
		accounts   *mockAccounts
		creator    *mockCreator
		pending    *mockPendingStore
		reconciler *mockReconciler
		audit      *mockAudit
		publisher  *mockPublisher
		service    *payment.Service
		ctx        context.Context
	)

	ginkgo.BeforeEach(func() {
		accounts = &mockAccounts{account: &account.Account{ID: "acc-1", Email: "payer@example.com"}}
		creator = &mockCreator{created: approvalPayment()}
		pending = &mockPendingStore{stored: map[string]session.PendingPayment{}}
		reconciler = &mockReconciler{}
		audit = &mockAudit{}
		publisher = &mockPublisher{}
		builder := paypal.NewIntentBuilder(func() string { return "0000000000000" })
		service = payment.NewService(accounts, builder, creator, pending, reconciler, audit, publisher,
			internal.PaymentOptions{}, "https://shop.example.com", slog.Default())
		ctx = context.Background()
	})

	ginkgo.Describe("StartCheckout", func() {
		ginkgo.It("should create the payment and park it on the session", func() {
			// When
			result, err := service.StartCheckout(ctx, "acc-1", "sess-1")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(result.PaymentID).To(gomega.Equal("PAY-1"))
			gomega.Expect(result.ApprovalURL).To(gomega.ContainSubstring("token=EC-1"))
			gomega.Expect(pending.stored).To(gomega.HaveKeyWithValue("sess-1", gomega.HaveField("PaymentID", "PAY-1")))
			gomega.Expect(creator.sent.Transactions[0].ItemList.Items[0].SKU).To(gomega.Equal("0000000000000acc-1"))
			gomega.Expect(creator.sent.RedirectURLs.ReturnURL).To(gomega.Equal("https://shop.example.com/paypal/execute?success=true"))
			gomega.Expect(publisher.events).To(gomega.HaveLen(1))
			gomega.Expect(publisher.events[0].EventType()).To(gomega.Equal(events.EventTypeCheckoutStarted))
		})

		ginkgo.It("should refuse an account that is already active", func() {
			accounts.account.IsActive = true

			_, err := service.StartCheckout(ctx, "acc-1", "sess-1")

			gomega.Expect(err).To(gomega.Equal(internal.ErrAccountAlreadyActive))
			gomega.Expect(creator.sent).To(gomega.BeNil())
		})

		ginkgo.It("should pass through a missing account", func() {
			accounts.err = internal.ErrAccountNotFound

			_, err := service.StartCheckout(ctx, "acc-1", "sess-1")

			gomega.Expect(err).To(gomega.Equal(internal.ErrAccountNotFound))
		})

		ginkgo.It("should report a missing approval url", func() {
			creator.created = &paypal.Payment{ID: "PAY-1"}

			_, err := service.StartCheckout(ctx, "acc-1", "sess-1")

			gomega.Expect(err).To(gomega.Equal(internal.ErrApprovalURLMissing))
			gomega.Expect(pending.stored).To(gomega.BeEmpty())
		})

		ginkgo.It("should surface processor errors as upstream failures with their name", func() {
			creator.err = &paypal.APIError{StatusCode: 400, Name: "VALIDATION_ERROR", Message: "Invalid request"}

			_, err := service.StartCheckout(ctx, "acc-1", "sess-1")

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeUpstreamUnavailable))
			gomega.Expect(appErr.Details).To(gomega.Equal(reconciliation.Rejection{Name: "VALIDATION_ERROR", Message: "Invalid request"}))
		})

		ginkgo.It("should wrap session store failures", func() {
			pending.err = errors.New("db down")

			_, err := service.StartCheckout(ctx, "acc-1", "sess-1")

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeSessionStoreFailed))
		})
	})

	ginkgo.Describe("HandleNotification", func() {
		ginkgo.It("should parse the body in order and audit the outcome", func() {
			// Given
			reconciler.notification = &reconciliation.NotificationOutcome{Kind: reconciliation.NotificationActivated, AccountID: "ABC123"}

			// When
			out, err := service.HandleNotification(ctx, "txn_id=T1&payment_status=Completed&item_number1=0000000000000ABC123")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(out.Kind).To(gomega.Equal(reconciliation.NotificationActivated))
			gomega.Expect(reconciler.lastNotice.Fields[0]).To(gomega.Equal(paypal.Field{Name: "txn_id", Value: "T1"}))
			gomega.Expect(audit.outcomes).To(gomega.Equal([]string{"activated"}))
		})

		ginkgo.It("should not audit discarded notifications", func() {
			reconciler.notification = &reconciliation.NotificationOutcome{Kind: reconciliation.NotificationDiscarded}

			_, err := service.HandleNotification(ctx, "payment_status=Completed")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(audit.outcomes).To(gomega.BeEmpty())
		})

		ginkgo.It("should audit failures after verification", func() {
			reconciler.err = internal.NewAccountWriteError("Failed to update account", errors.New("deadlock"))

			_, err := service.HandleNotification(ctx, "payment_status=Completed")

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(audit.outcomes).To(gomega.Equal([]string{notification.OutcomeFailed}))
		})

		ginkgo.It("should not audit when verification could not run", func() {
			reconciler.err = internal.NewExternalError("Notification verification unavailable", errors.New("timeout"))

			_, err := service.HandleNotification(ctx, "payment_status=Completed")

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(audit.outcomes).To(gomega.BeEmpty())
		})

		ginkgo.It("should reject a malformed body", func() {
			_, err := service.HandleNotification(ctx, "payment_status=%zz")

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			gomega.Expect(reconciler.lastNotice).To(gomega.BeNil())
		})
	})
})
