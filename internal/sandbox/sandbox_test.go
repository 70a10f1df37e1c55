package sandbox_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/sandbox"
)

type listener struct {
	mu       sync.Mutex
	bodies   []string
	failures int
}

func (l *listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bodies = append(l.bodies, string(body))
	if l.failures > 0 {
		l.failures--
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("error"))
		return
	}
	_, _ = w.Write([]byte("success"))
}

func (l *listener) received() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.bodies...)
}

var _ = ginkgo.Describe("Sandbox", func() {
	var (
		ctx       context.Context
		ipn       *listener
		ipnServer *httptest.Server
		deliverer *sandbox.Deliverer
		server    *httptest.Server
		client    *paypal.Client
		builder   *paypal.IntentBuilder
	)

	newDeliverer := func(maxAttempts int) *sandbox.Deliverer {
		return sandbox.NewDeliverer(sandbox.DelivererConfig{
			IPNURL:       ipnServer.URL,
			MaxWorkers:   2,
			JobQueueSize: 10,
			MaxAttempts:  maxAttempts,
			RetryDelay:   10 * time.Millisecond,
		}, nil)
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		ipn = &listener{}
		ipnServer = httptest.NewServer(ipn)
		deliverer = newDeliverer(3)

		server = httptest.NewUnstartedServer(nil)
		srv, err := sandbox.NewServer(sandbox.ServerConfig{
			BaseURL:      "http://" + server.Listener.Addr().String(),
			ClientID:     "id",
			ClientSecret: "secret",
		}, deliverer, deliverer, nil)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		server.Config.Handler = srv.Routes()
		server.Start()

		client = paypal.NewClient(paypal.ClientConfig{BaseURL: server.URL, ClientID: "id", ClientSecret: "secret"}, nil)
		builder = paypal.NewIntentBuilder(func() string { return "ABCDEFGHIJKLM" })
	})

	ginkgo.AfterEach(func() {
		deliverer.Shutdown()
		server.Close()
		ipnServer.Close()
	})

	createPayment := func() *paypal.Payment {
		intent, err := builder.Build(paypal.AccountContext{AccountID: "42"}, internal.PaymentOptions{}, paypal.RedirectURLsFor("http://app.local"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		created, err := client.CreatePayment(ctx, intent)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return created
	}

	ginkgo.It("creates a payment with an approval link that redirects back with a payer id", func() {
		// Given a created payment
		created := createPayment()
		gomega.Expect(created.State).To(gomega.Equal(sandbox.StateCreated))
		approval, ok := paypal.ApprovalURL(created)
		gomega.Expect(ok).To(gomega.BeTrue())

		// When the buyer follows the approval link
		noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
		resp, err := noFollow.Get(approval + "&PayerID=BUYER1")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer resp.Body.Close()

		// Then they land on the return url with both ids
		gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusFound))
		loc, err := url.Parse(resp.Header.Get("Location"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(loc.Path).To(gomega.Equal("/paypal/execute"))
		gomega.Expect(loc.Query().Get("success")).To(gomega.Equal("true"))
		gomega.Expect(loc.Query().Get("paymentId")).To(gomega.Equal(created.ID))
		gomega.Expect(loc.Query().Get("PayerID")).To(gomega.Equal("BUYER1"))
	})

	ginkgo.It("sends a cancelled buyer to the cancel url", func() {
		created := createPayment()
		approval, _ := paypal.ApprovalURL(created)

		noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
		resp, err := noFollow.Get(approval + "&cancel=1")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer resp.Body.Close()

		gomega.Expect(resp.Header.Get("Location")).To(gomega.Equal("http://app.local/paypal/execute?success=false"))
	})

	ginkgo.It("executes once, then delivers a notification the verifier accepts", func() {
		// Given a created payment
		created := createPayment()

		// When it is executed
		executed, err := client.ExecutePayment(ctx, created.ID, paypal.PaymentExecution{PayerID: "BUYER1"})

		// Then a completed sale is attached
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		sale, ok := executed.Sale()
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(sale.State).To(gomega.Equal(paypal.SaleStateCompleted))

		// And the listener receives a Completed notification carrying the SKU
		gomega.Eventually(ipn.received).Should(gomega.HaveLen(1))
		n, err := paypal.ParseNotification(ipn.received()[0])
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(*n.PaymentStatus).To(gomega.Equal(paypal.StatusCompleted))
		gomega.Expect(*n.TxnID).To(gomega.Equal(sale.ID))
		accountID, ok := n.AccountID()
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(accountID).To(gomega.Equal("42"))

		// And the verification echo is answered VERIFIED
		verifier := paypal.NewVerifier(server.URL+"/cgi-bin/webscr", time.Second, nil)
		verified, err := verifier.Verify(ctx, n.Fields)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(verified).To(gomega.BeTrue())

		// And a second execute is refused
		_, err = client.ExecutePayment(ctx, created.ID, paypal.PaymentExecution{PayerID: "BUYER1"})
		var apiErr *paypal.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Name).To(gomega.Equal("PAYMENT_STATE_INVALID"))
	})

	ginkgo.It("answers INVALID for a tampered notification", func() {
		verifier := paypal.NewVerifier(server.URL+"/cgi-bin/webscr", time.Second, nil)
		verified, err := verifier.Verify(ctx, []paypal.Field{
			{Name: paypal.FieldPaymentStatus, Value: paypal.StatusCompleted},
			{Name: paypal.FieldTxnID, Value: "FORGED"},
		})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(verified).To(gomega.BeFalse())
	})

	ginkgo.It("refuses the decline payer and reports unknown payments", func() {
		created := createPayment()

		_, err := client.ExecutePayment(ctx, created.ID, paypal.PaymentExecution{PayerID: sandbox.DeclinePayerID})
		var apiErr *paypal.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Name).To(gomega.Equal("CREDIT_CARD_REFUSED"))

		_, err = client.GetPayment(ctx, "PAY-UNKNOWN")
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Name).To(gomega.Equal("INVALID_RESOURCE_ID"))

		gomega.Consistently(ipn.received, 50*time.Millisecond).Should(gomega.BeEmpty())
	})

	ginkgo.It("rejects bad client credentials", func() {
		bad := paypal.NewClient(paypal.ClientConfig{BaseURL: server.URL, ClientID: "id", ClientSecret: "wrong"}, nil)
		_, err := bad.GetPayment(ctx, "PAY-1")
		var apiErr *paypal.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Name).To(gomega.Equal("invalid_client"))
	})

	ginkgo.Describe("Deliverer", func() {
		ginkgo.It("retries until the listener acknowledges", func() {
			// Given a listener that fails twice
			ipn.mu.Lock()
			ipn.failures = 2
			ipn.mu.Unlock()

			// When a notification is enqueued
			fields := []paypal.Field{{Name: paypal.FieldTxnID, Value: "T1"}}
			gomega.Expect(deliverer.Enqueue("PAY-1", fields)).To(gomega.Succeed())

			// Then it is posted three times, identically
			gomega.Eventually(ipn.received).Should(gomega.HaveLen(3))
			gomega.Consistently(ipn.received, 50*time.Millisecond).Should(gomega.HaveLen(3))
			gomega.Expect(ipn.received()).To(gomega.HaveEach("txn_id=T1"))
			gomega.Expect(deliverer.Genuine(fields)).To(gomega.BeTrue())
		})

		ginkgo.It("gives up after the attempt limit", func() {
			ipn.mu.Lock()
			ipn.failures = 10
			ipn.mu.Unlock()

			gomega.Expect(deliverer.Enqueue("PAY-1", []paypal.Field{{Name: paypal.FieldTxnID, Value: "T2"}})).To(gomega.Succeed())

			gomega.Eventually(ipn.received).Should(gomega.HaveLen(3))
			gomega.Consistently(ipn.received, 80*time.Millisecond).Should(gomega.HaveLen(3))
		})

		ginkgo.It("does not vouch for fields it never sent", func() {
			gomega.Expect(deliverer.Genuine([]paypal.Field{{Name: paypal.FieldTxnID, Value: "T9"}})).To(gomega.BeFalse())
		})
	})
})
