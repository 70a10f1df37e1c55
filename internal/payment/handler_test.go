package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/core/events"
	"github.com/frahmantamala/paypal-activation/internal/payment"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/session"
)

type mockService struct {
	checkout       *payment.CheckoutResult
	checkoutErr    error
	redirect       *reconciliation.RedirectOutcome
	redirectErr    error
	notification   *reconciliation.NotificationOutcome
	notificationEr error

	lastSessionID string
	lastSC        reconciliation.SessionContext
	lastCB        reconciliation.RedirectCallback
	lastRaw       string
}

func (m *mockService) StartCheckout(ctx context.Context, accountID, sessionID string) (*payment.CheckoutResult, error) {
	m.lastSessionID = sessionID
	return m.checkout, m.checkoutErr
}

func (m *mockService) ConfirmRedirect(ctx context.Context, sc reconciliation.SessionContext, cb reconciliation.RedirectCallback) (*reconciliation.RedirectOutcome, error) {
	m.lastSC, m.lastCB = sc, cb
	return m.redirect, m.redirectErr
}

func (m *mockService) HandleNotification(ctx context.Context, raw string) (*reconciliation.NotificationOutcome, error) {
	m.lastRaw = raw
	return m.notification, m.notificationEr
}

type mockSessions struct {
	current *session.Session
	ended   bool
	flash   *session.Flash
}

func (m *mockSessions) Start(w http.ResponseWriter, accountID string) (*session.Session, error) {
	m.current = &session.Session{ID: "sess-new", AccountID: accountID}
	return m.current, nil
}

func (m *mockSessions) Read(r *http.Request) (*session.Session, error) {
	if m.current == nil {
		return nil, internal.ErrSessionMissing
	}
	return m.current, nil
}

func (m *mockSessions) End(w http.ResponseWriter) {
	m.ended = true
}

func (m *mockSessions) SetFlash(w http.ResponseWriter, f session.Flash) error {
	m.flash = &f
	return nil
}

func (m *mockSessions) TakeFlash(w http.ResponseWriter, r *http.Request) *session.Flash {
	f := m.flash
	m.flash = nil
	return f
}

type mockPurger struct {
	purged []string
	err    error
}

func (m *mockPurger) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	m.purged = append(m.purged, accountID)
	return 1, m.err
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		svc      *mockService
		sessions *mockSessions
		handler  *payment.Handler
	)

	ginkgo.BeforeEach(func() {
		svc = &mockService{}
		sessions = &mockSessions{}
		handler = payment.NewHandler(svc, sessions, "/", "/paypal/error")
	})

	ginkgo.Describe("Checkout", func() {
		ginkgo.It("should start a session and return the approval url", func() {
			// Given
			svc.checkout = &payment.CheckoutResult{PaymentID: "PAY-1", ApprovalURL: "https://paypal.test/approve"}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/paypal/checkout", nil)
			req = req.WithContext(internal.ContextWithAccountID(req.Context(), "acc-1"))
			rec := httptest.NewRecorder()

			// When
			handler.Checkout(rec, req)

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
			gomega.Expect(rec.Body.String()).To(gomega.MatchJSON(`{"payment_id":"PAY-1","approval_url":"https://paypal.test/approve"}`))
			gomega.Expect(svc.lastSessionID).To(gomega.Equal("sess-new"))
		})

		ginkgo.It("should return 409 for an active account and end the session", func() {
			svc.checkoutErr = internal.ErrAccountAlreadyActive
			req := httptest.NewRequest(http.MethodPost, "/api/v1/paypal/checkout", nil)
			req = req.WithContext(internal.ContextWithAccountID(req.Context(), "acc-1"))
			rec := httptest.NewRecorder()

			handler.Checkout(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusConflict))
			gomega.Expect(sessions.ended).To(gomega.BeTrue())
		})

		ginkgo.It("should require authentication", func() {
			rec := httptest.NewRecorder()

			handler.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/paypal/checkout", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("ExecuteRedirect", func() {
		ginkgo.BeforeEach(func() {
			sessions.current = &session.Session{ID: "sess-1", AccountID: "acc-1"}
		})

		ginkgo.It("should end the session and go home when the payer declines", func() {
			// Given
			svc.redirect = &reconciliation.RedirectOutcome{Kind: reconciliation.RedirectExit}
			rec := httptest.NewRecorder()

			// When
			handler.ExecuteRedirect(rec, httptest.NewRequest(http.MethodGet, "/paypal/execute?success=false", nil))

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusFound))
			gomega.Expect(rec.Header().Get("Location")).To(gomega.Equal("/"))
			gomega.Expect(sessions.ended).To(gomega.BeTrue())
			gomega.Expect(svc.lastCB.Approved).To(gomega.BeFalse())
			gomega.Expect(svc.lastSC).To(gomega.Equal(reconciliation.SessionContext{SessionID: "sess-1", AccountID: "acc-1"}))
		})

		ginkgo.It("should pass the PayerID and redirect home when settled", func() {
			svc.redirect = &reconciliation.RedirectOutcome{Kind: reconciliation.RedirectSettled}
			rec := httptest.NewRecorder()

			handler.ExecuteRedirect(rec, httptest.NewRequest(http.MethodGet, "/paypal/execute?success=true&PayerID=PAYER1", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusFound))
			gomega.Expect(rec.Header().Get("Location")).To(gomega.Equal("/"))
			gomega.Expect(svc.lastCB).To(gomega.Equal(reconciliation.RedirectCallback{Approved: true, PayerID: "PAYER1"}))
			gomega.Expect(sessions.ended).To(gomega.BeFalse())
		})

		ginkgo.It("should carry the rejection to the error view", func() {
			svc.redirect = &reconciliation.RedirectOutcome{
				Kind:      reconciliation.RedirectRejected,
				Rejection: &reconciliation.Rejection{Name: "CREDIT_CARD_REFUSED", Message: "Credit card was refused."},
			}
			rec := httptest.NewRecorder()

			handler.ExecuteRedirect(rec, httptest.NewRequest(http.MethodGet, "/paypal/execute?success=true&PayerID=PAYER1", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusFound))
			gomega.Expect(rec.Header().Get("Location")).To(gomega.Equal("/paypal/error"))
			gomega.Expect(sessions.flash).To(gomega.Equal(&session.Flash{
				Code:    string(internal.ErrCodePaymentRejected),
				Name:    "CREDIT_CARD_REFUSED",
				Message: "Credit card was refused.",
			}))
		})

		ginkgo.It("should answer neutrally when there is nothing to execute", func() {
			sessions.current = nil
			svc.redirect = &reconciliation.RedirectOutcome{Kind: reconciliation.RedirectNothingToExecute}
			rec := httptest.NewRecorder()

			handler.ExecuteRedirect(rec, httptest.NewRequest(http.MethodGet, "/paypal/execute?success=true&PayerID=PAYER1", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("nothing_to_execute"))
			gomega.Expect(svc.lastSC).To(gomega.Equal(reconciliation.SessionContext{}))
		})

		ginkgo.It("should redirect upstream failures to the error view with their code", func() {
			svc.redirectErr = internal.NewExternalError("Payment processor unavailable", errors.New("timeout"))
			rec := httptest.NewRecorder()

			handler.ExecuteRedirect(rec, httptest.NewRequest(http.MethodGet, "/paypal/execute?success=true&PayerID=PAYER1", nil))

			gomega.Expect(rec.Header().Get("Location")).To(gomega.Equal("/paypal/error"))
			gomega.Expect(sessions.flash).ToNot(gomega.BeNil())
			gomega.Expect(sessions.flash.Code).To(gomega.Equal(string(internal.ErrCodeUpstreamUnavailable)))
		})

		ginkgo.DescribeTable("should reject malformed callbacks before reconciling",
			func(query string) {
				rec := httptest.NewRecorder()

				handler.ExecuteRedirect(rec, httptest.NewRequest(http.MethodGet, "/paypal/execute?"+query, nil))

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusFound))
				gomega.Expect(rec.Header().Get("Location")).To(gomega.Equal("/paypal/error"))
				gomega.Expect(sessions.flash.Code).To(gomega.Equal(string(internal.ErrCodeValidationFailed)))
				gomega.Expect(svc.lastCB).To(gomega.Equal(reconciliation.RedirectCallback{}))
			},
			ginkgo.Entry("missing success", "PayerID=PAYER1"),
			ginkgo.Entry("unknown success value", "success=maybe"),
			ginkgo.Entry("approved without payer", "success=true"),
		)
	})

	ginkgo.Describe("ErrorView", func() {
		ginkgo.It("should render the flashed rejection escaped", func() {
			// Given
			sessions.flash = &session.Flash{Code: "PAYMENT_REJECTED", Name: "CREDIT_CARD_REFUSED", Message: "<b>refused</b>"}
			rec := httptest.NewRecorder()

			// When
			handler.ErrorView(rec, httptest.NewRequest(http.MethodGet, "/paypal/error", nil))

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Header().Get("Content-Type")).To(gomega.HavePrefix("text/html"))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("CREDIT_CARD_REFUSED"))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("&lt;b&gt;refused&lt;/b&gt;"))
			gomega.Expect(sessions.flash).To(gomega.BeNil())
		})

		ginkgo.It("should ignore error text placed in the url", func() {
			rec := httptest.NewRecorder()

			handler.ErrorView(rec, httptest.NewRequest(http.MethodGet, "/paypal/error?name=ACCOUNT_SUSPENDED&message=Call+this+number", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).NotTo(gomega.ContainSubstring("ACCOUNT_SUSPENDED"))
			gomega.Expect(rec.Body.String()).NotTo(gomega.ContainSubstring("Call this number"))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("The payment could not be processed."))
		})
	})
})

var _ = ginkgo.Describe("WebhookHandler", func() {
	var (
		svc     *mockService
		handler *payment.WebhookHandler
	)

	ginkgo.BeforeEach(func() {
		svc = &mockService{}
		handler = payment.NewWebhookHandler(svc)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/paypal/ipn", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.HandleIPN(rec, req)
		return rec
	}

	ginkgo.It("should acknowledge a processed notification with success", func() {
		svc.notification = &reconciliation.NotificationOutcome{Kind: reconciliation.NotificationActivated}

		rec := post("payment_status=Completed&txn_id=T1")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Body.String()).To(gomega.Equal("success"))
		gomega.Expect(svc.lastRaw).To(gomega.Equal("payment_status=Completed&txn_id=T1"))
	})

	ginkgo.It("should answer a discarded notification with an empty 200", func() {
		svc.notification = &reconciliation.NotificationOutcome{Kind: reconciliation.NotificationDiscarded}

		rec := post("payment_status=Completed")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Body.String()).To(gomega.BeEmpty())
	})

	ginkgo.It("should fail so the processor redelivers", func() {
		svc.notificationEr = internal.ErrAccountNotFound

		rec := post("payment_status=Completed")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
		gomega.Expect(rec.Body.String()).ToNot(gomega.Equal("success"))
	})

	ginkgo.It("should fall back to the query string", func() {
		svc.notification = &reconciliation.NotificationOutcome{Kind: reconciliation.NotificationIgnored}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/paypal/ipn?txn_type=new_case", nil)
		rec := httptest.NewRecorder()

		handler.HandleIPN(rec, req)

		gomega.Expect(rec.Body.String()).To(gomega.Equal("success"))
		gomega.Expect(svc.lastRaw).To(gomega.Equal("txn_type=new_case"))
	})

	ginkgo.It("should ignore an empty delivery", func() {
		rec := post("")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(svc.lastRaw).To(gomega.BeEmpty())
	})
})

var _ = ginkgo.Describe("EventHandler", func() {
	ginkgo.It("should purge pending payments of an activated account", func() {
		purger := &mockPurger{}
		handler := payment.NewEventHandler(purger, slog.Default())
		bus := events.NewEventBus(slog.Default())
		handler.RegisterEventHandlers(bus)

		err := bus.PublishSync(context.Background(), events.NewAccountActivatedEvent("acc-1", "T1", "notification"))

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(purger.purged).To(gomega.Equal([]string{"acc-1"}))
	})

	ginkgo.It("should reject foreign events", func() {
		handler := payment.NewEventHandler(&mockPurger{}, slog.Default())

		err := handler.HandleAccountActivated(context.Background(), events.NewCheckoutStartedEvent("acc-1", "PAY-1"))

		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
