package paypal_test

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
)

var _ = ginkgo.Describe("IntentBuilder", func() {
	var (
		builder *paypal.IntentBuilder
		urls    paypal.RedirectURLs
	)

	ginkgo.BeforeEach(func() {
		builder = paypal.NewIntentBuilder(func() string { return "abcdefghijklm" })
		urls = paypal.RedirectURLsFor("https://shop.example.com/")
	})

	ginkgo.Context("when no options are configured", func() {
		ginkgo.It("should fall back to the documented defaults", func() {
			// When
			p, err := builder.Build(paypal.AccountContext{AccountID: "acc-1"}, internal.PaymentOptions{}, urls)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(p.Intent).To(gomega.Equal("sale"))
			gomega.Expect(p.Payer.PaymentMethod).To(gomega.Equal("paypal"))
			gomega.Expect(p.Transactions).To(gomega.HaveLen(1))

			tx := p.Transactions[0]
			gomega.Expect(tx.Amount).To(gomega.Equal(paypal.Amount{Currency: "GBP", Total: "1.00"}))
			gomega.Expect(tx.Description).To(gomega.BeEmpty())
			gomega.Expect(tx.ItemList.Items).To(gomega.ConsistOf(paypal.Item{
				SKU:      "abcdefghijklmacc-1",
				Name:     "Video",
				Quantity: "1",
				Price:    "1.00",
				Currency: "GBP",
			}))
		})

		ginkgo.It("should point both redirects at the execute callback", func() {
			p, err := builder.Build(paypal.AccountContext{AccountID: "acc-1"}, internal.PaymentOptions{}, urls)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(p.RedirectURLs.ReturnURL).To(gomega.Equal("https://shop.example.com/paypal/execute?success=true"))
			gomega.Expect(p.RedirectURLs.CancelURL).To(gomega.Equal("https://shop.example.com/paypal/execute?success=false"))
		})
	})

	ginkgo.Context("when options are configured", func() {
		ginkgo.It("should use them but always override the sku", func() {
			// Given
			var opts internal.PaymentOptions
			opts.Item.SKU = "0001"
			opts.Item.Name = "Membership"
			opts.Item.Price = "9.99"
			opts.Item.Currency = "USD"
			opts.Amount.Currency = "USD"
			opts.Amount.Total = "9.99"
			opts.Transaction.Description = "Annual membership"

			// When
			p, err := builder.Build(paypal.AccountContext{AccountID: "42"}, opts, urls)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			item := p.Transactions[0].ItemList.Items[0]
			gomega.Expect(item.SKU).To(gomega.Equal("abcdefghijklm42"))
			gomega.Expect(item.Name).To(gomega.Equal("Membership"))
			gomega.Expect(item.Price).To(gomega.Equal("9.99"))
			gomega.Expect(p.Transactions[0].Amount.Total).To(gomega.Equal("9.99"))
			gomega.Expect(p.Transactions[0].Description).To(gomega.Equal("Annual membership"))
		})
	})

	ginkgo.It("should produce a sku whose account id survives the notification round trip", func() {
		gen, err := paypal.NewSKUTokenGenerator()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		b := paypal.NewIntentBuilder(gen)

		p1, err := b.Build(paypal.AccountContext{AccountID: "ABC123"}, internal.PaymentOptions{}, urls)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		p2, err := b.Build(paypal.AccountContext{AccountID: "ABC123"}, internal.PaymentOptions{}, urls)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		sku1 := p1.Transactions[0].ItemList.Items[0].SKU
		sku2 := p2.Transactions[0].ItemList.Items[0].SKU
		gomega.Expect(sku1).ToNot(gomega.Equal(sku2))

		id, ok := paypal.AccountIDFromItemNumber(sku1)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(id).To(gomega.Equal("ABC123"))
	})

	ginkgo.It("should reject a token of the wrong width", func() {
		b := paypal.NewIntentBuilder(func() string { return "short" })

		_, err := b.Build(paypal.AccountContext{AccountID: "acc-1"}, internal.PaymentOptions{}, urls)

		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("should require an account id", func() {
		_, err := builder.Build(paypal.AccountContext{}, internal.PaymentOptions{}, urls)

		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = ginkgo.Describe("ApprovalURL", func() {
	ginkgo.It("should return the first approval_url link", func() {
		p := &paypal.Payment{Links: []paypal.Link{
			{Rel: "self", Href: "https://api/self"},
			{Rel: "approval_url", Href: "https://paypal/approve/1"},
			{Rel: "approval_url", Href: "https://paypal/approve/2"},
		}}

		href, ok := paypal.ApprovalURL(p)

		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(href).To(gomega.Equal("https://paypal/approve/1"))
	})

	ginkgo.It("should report absence when no link matches exactly", func() {
		p := &paypal.Payment{Links: []paypal.Link{
			{Rel: "execute", Href: "https://api/execute"},
			{Rel: "APPROVAL_URL", Href: "https://paypal/approve"},
		}}

		_, ok := paypal.ApprovalURL(p)

		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("should handle a nil payment", func() {
		_, ok := paypal.ApprovalURL(nil)
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("ErrorCodes", func() {
	ginkgo.It("should contain the standard rejection names", func() {
		codes := paypal.DefaultErrorCodes()

		gomega.Expect(codes.Len()).To(gomega.Equal(38))
		gomega.Expect(codes.Contains("CREDIT_CARD_REFUSED")).To(gomega.BeTrue())
		gomega.Expect(codes.Contains("RATE_LIMIT_REACHED")).To(gomega.BeTrue())
		gomega.Expect(codes.Contains("")).To(gomega.BeFalse())
		gomega.Expect(codes.Contains("credit_card_refused")).To(gomega.BeFalse())
	})
})
