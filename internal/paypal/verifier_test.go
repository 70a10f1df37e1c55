package paypal_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paypal-activation/internal/paypal"
)

var _ = ginkgo.Describe("Verifier", func() {
	var (
		server   *httptest.Server
		reply    string
		status   int
		received string
		verifier *paypal.Verifier
		fields   []paypal.Field
	)

	ginkgo.BeforeEach(func() {
		reply = "VERIFIED"
		status = http.StatusOK
		received = ""
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received = string(body)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
		verifier = paypal.NewVerifier(server.URL, 0, nil)
		fields = []paypal.Field{
			{Name: "payment_status", Value: "Completed"},
			{Name: "txn_id", Value: "T1"},
			{Name: "payer_email", Value: "buyer@example.com"},
		}
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.It("should echo the fields in order after the validate command", func() {
		// When
		ok, err := verifier.Verify(context.Background(), fields)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(received).To(gomega.Equal("cmd=_notify-validate&payment_status=Completed&txn_id=T1&payer_email=buyer%40example.com"))
	})

	ginkgo.DescribeTable("responses other than VERIFIED",
		func(body string) {
			reply = body

			ok, err := verifier.Verify(context.Background(), fields)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		},
		ginkgo.Entry("INVALID", "INVALID"),
		ginkgo.Entry("empty", ""),
		ginkgo.Entry("lower case", "verified"),
		ginkgo.Entry("trailing newline", "VERIFIED\n"),
		ginkgo.Entry("html error page", "<html>oops</html>"),
	)

	ginkgo.It("should fail closed with an error on a non-2xx status", func() {
		status = http.StatusServiceUnavailable

		ok, err := verifier.Verify(context.Background(), fields)

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("should fail closed with an error when the endpoint is unreachable", func() {
		server.Close()

		ok, err := verifier.Verify(context.Background(), fields)

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("EncodeVerification", func() {
	ginkgo.It("should escape names and values", func() {
		encoded := paypal.EncodeVerification([]paypal.Field{{Name: "item name", Value: "a&b=c"}})
		gomega.Expect(encoded).To(gomega.Equal("cmd=_notify-validate&item+name=a%26b%3Dc"))
	})
})
