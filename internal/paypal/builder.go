package paypal

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/jaevor/go-nanoid"
)

// SKUTokenLength is the width of the random prefix in every item SKU. Notifications
// carry the SKU back as item_number1, and the account id is read from this offset.
const SKUTokenLength = 13

const (
	defaultQuantity      = "1"
	defaultItemName      = "Video"
	defaultPrice         = "1.00"
	defaultCurrency      = "GBP"
	defaultTotal         = "1.00"
	defaultPaymentMethod = PaymentMethodPayPal
)

type AccountContext struct {
	AccountID string
}

// RedirectURLsFor builds the execute callback targets under baseURL.
func RedirectURLsFor(baseURL string) RedirectURLs {
	base := strings.TrimRight(baseURL, "/")
	return RedirectURLs{
		ReturnURL: base + "/paypal/execute?success=true",
		CancelURL: base + "/paypal/execute?success=false",
	}
}

// NewSKUTokenGenerator returns a nanoid generator producing SKUTokenLength-wide tokens.
func NewSKUTokenGenerator() (func() string, error) {
	return nanoid.Standard(SKUTokenLength)
}

type IntentBuilder struct {
	newToken func() string
}

func NewIntentBuilder(newToken func() string) *IntentBuilder {
	return &IntentBuilder{newToken: newToken}
}

// Build assembles a sale intent for one checkout attempt. It performs no I/O.
func (b *IntentBuilder) Build(acct AccountContext, opts internal.PaymentOptions, urls RedirectURLs) (*Payment, error) {
	if acct.AccountID == "" {
		return nil, fmt.Errorf("paypal: account id is required")
	}
	token := b.newToken()
	if len(token) != SKUTokenLength {
		return nil, fmt.Errorf("paypal: sku token must be %d characters, got %d", SKUTokenLength, len(token))
	}

	item := Item{
		SKU:      token + acct.AccountID,
		Name:     orDefault(opts.Item.Name, defaultItemName),
		Quantity: orDefault(opts.Item.Quantity, defaultQuantity),
		Price:    orDefault(opts.Item.Price, defaultPrice),
		Currency: orDefault(opts.Item.Currency, defaultCurrency),
	}

	return &Payment{
		Intent: IntentSale,
		Payer: Payer{
			PaymentMethod: orDefault(opts.Payer.PaymentMethod, defaultPaymentMethod),
		},
		Transactions: []Transaction{{
			Amount: Amount{
				Currency: orDefault(opts.Amount.Currency, defaultCurrency),
				Total:    orDefault(opts.Amount.Total, defaultTotal),
			},
			ItemList:      &ItemList{Items: []Item{item}},
			Description:   opts.Transaction.Description,
			InvoiceNumber: token,
		}},
		RedirectURLs: &urls,
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
