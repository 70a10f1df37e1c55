package paypal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paypal-activation/internal/paypal"
)

var _ = ginkgo.Describe("Client", func() {
	var (
		server      *httptest.Server
		client      *paypal.Client
		tokenCalls  int32
		executeFail bool
	)

	ginkgo.BeforeEach(func() {
		atomic.StoreInt32(&tokenCalls, 0)
		executeFail = false

		r := chi.NewRouter()
		r.Post("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&tokenCalls, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client", "error_description": "bad"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "tok", "expires_in": 3600})
		})
		r.Post("/v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"name": "AUTHENTICATION_FAILURE", "message": "bad token"})
				return
			}
			var p paypal.Payment
			_ = json.NewDecoder(r.Body).Decode(&p)
			p.ID = "PAY-1"
			p.State = "created"
			p.Links = []paypal.Link{{Rel: "approval_url", Href: "https://paypal/approve?token=EC-1"}}
			writeJSON(w, http.StatusCreated, p)
		})
		r.Get("/v1/payments/payment/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != "PAY-1" {
				writeJSON(w, http.StatusNotFound, map[string]string{"name": "INVALID_RESOURCE_ID", "message": "not found"})
				return
			}
			writeJSON(w, http.StatusOK, paypal.Payment{ID: "PAY-1", State: "created"})
		})
		r.Post("/v1/payments/payment/{id}/execute", func(w http.ResponseWriter, r *http.Request) {
			if executeFail {
				writeJSON(w, http.StatusBadRequest, map[string]string{"name": "CREDIT_CARD_REFUSED", "message": "refused"})
				return
			}
			var exec paypal.PaymentExecution
			_ = json.NewDecoder(r.Body).Decode(&exec)
			writeJSON(w, http.StatusOK, paypal.Payment{
				ID:    chi.URLParam(r, "id"),
				State: "approved",
				Payer: paypal.Payer{PayerInfo: &paypal.PayerInfo{PayerID: exec.PayerID}},
				Transactions: []paypal.Transaction{{
					RelatedResources: []paypal.RelatedResource{{Sale: &paypal.Sale{ID: "SALE-1", State: "completed"}}},
				}},
			})
		})
		server = httptest.NewServer(r)

		client = paypal.NewClient(paypal.ClientConfig{
			BaseURL:      server.URL,
			ClientID:     "id",
			ClientSecret: "secret",
		}, nil)
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.It("should create a payment and reuse the cached token", func() {
		created, err := client.CreatePayment(context.Background(), &paypal.Payment{Intent: "sale"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(created.ID).To(gomega.Equal("PAY-1"))

		_, err = client.GetPayment(context.Background(), "PAY-1")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(atomic.LoadInt32(&tokenCalls)).To(gomega.Equal(int32(1)))
	})

	ginkgo.It("should execute a payment and expose the sale", func() {
		executed, err := client.ExecutePayment(context.Background(), "PAY-1", paypal.PaymentExecution{PayerID: "PAYER-9"})

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		sale, ok := executed.Sale()
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(sale.ID).To(gomega.Equal("SALE-1"))
		gomega.Expect(executed.Payer.PayerInfo.PayerID).To(gomega.Equal("PAYER-9"))
	})

	ginkgo.It("should return processor errors as APIError", func() {
		executeFail = true

		_, err := client.ExecutePayment(context.Background(), "PAY-1", paypal.PaymentExecution{PayerID: "PAYER-9"})

		var apiErr *paypal.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Name).To(gomega.Equal("CREDIT_CARD_REFUSED"))
		gomega.Expect(apiErr.StatusCode).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.It("should surface bad credentials as an APIError", func() {
		bad := paypal.NewClient(paypal.ClientConfig{BaseURL: server.URL, ClientID: "id", ClientSecret: "nope"}, nil)

		_, err := bad.GetPayment(context.Background(), "PAY-1")

		var apiErr *paypal.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Name).To(gomega.Equal("invalid_client"))
	})

	ginkgo.It("should wrap transport failures", func() {
		server.Close()

		_, err := client.GetPayment(context.Background(), "PAY-1")

		gomega.Expect(err).To(gomega.HaveOccurred())
		var apiErr *paypal.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeFalse())
	})
})

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
