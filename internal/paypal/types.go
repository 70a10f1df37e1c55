package paypal

import "fmt"

const (
	IntentSale          = "sale"
	PaymentMethodPayPal = "paypal"
	RelApprovalURL      = "approval_url"
	SaleStateCompleted  = "completed"
)

// Payment is the subset of the v1 payment resource this service reads and writes.
type Payment struct {
	ID           string        `json:"id,omitempty"`
	Intent       string        `json:"intent"`
	State        string        `json:"state,omitempty"`
	Payer        Payer         `json:"payer"`
	Transactions []Transaction `json:"transactions"`
	RedirectURLs *RedirectURLs `json:"redirect_urls,omitempty"`
	Links        []Link        `json:"links,omitempty"`
	CreateTime   string        `json:"create_time,omitempty"`
}

type Payer struct {
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status,omitempty"`
	PayerInfo     *PayerInfo `json:"payer_info,omitempty"`
}

type PayerInfo struct {
	Email   string `json:"email,omitempty"`
	PayerID string `json:"payer_id,omitempty"`
}

type Transaction struct {
	Amount           Amount            `json:"amount"`
	ItemList         *ItemList         `json:"item_list,omitempty"`
	Description      string            `json:"description"`
	InvoiceNumber    string            `json:"invoice_number,omitempty"`
	RelatedResources []RelatedResource `json:"related_resources,omitempty"`
}

type Amount struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type ItemList struct {
	Items []Item `json:"items"`
}

type Item struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

type RedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type RelatedResource struct {
	Sale *Sale `json:"sale,omitempty"`
}

type Sale struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	ParentPayment string `json:"parent_payment,omitempty"`
}

// PaymentExecution is the body of the execute call.
type PaymentExecution struct {
	PayerID string `json:"payer_id"`
}

// Sale returns the first sale attached to the payment's transactions, if any.
func (p *Payment) Sale() (*Sale, bool) {
	if p == nil {
		return nil, false
	}
	for _, tx := range p.Transactions {
		for _, rr := range tx.RelatedResources {
			if rr.Sale != nil && rr.Sale.ID != "" {
				return rr.Sale, true
			}
		}
	}
	return nil, false
}

// APIError is the error object the processor returns alongside a non-2xx status.
type APIError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("paypal: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("paypal: %s: %s", e.Name, e.Message)
}
