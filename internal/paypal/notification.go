package paypal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	FieldPaymentStatus = "payment_status"
	FieldTxnID         = "txn_id"
	FieldItemNumber    = "item_number1"
	FieldReceiverEmail = "receiver_email"
	FieldGross         = "mc_gross"
	FieldCurrency      = "mc_currency"

	StatusCompleted = "Completed"

	// AccountIDOffset is the number of leading item_number1 characters that belong to
	// the per-attempt SKU token. Everything after it is the account id.
	AccountIDOffset = SKUTokenLength
)

// Field is one name/value pair of a notification, in the order it was received.
type Field struct {
	Name  string
	Value string
}

// Notification is an inbound IPN. Fields keeps the raw pairs for the verification
// echo and the audit blob; the pointer fields are typed views of the known keys and
// are nil when the key was not sent.
type Notification struct {
	Fields []Field

	PaymentStatus *string
	TxnID         *string
	ItemNumber    *string
	ReceiverEmail *string
	Gross         *string
	Currency      *string
}

// ParseNotification decodes an application/x-www-form-urlencoded body without
// reordering it. An empty body yields an empty notification.
func ParseNotification(raw string) (*Notification, error) {
	n := &Notification{}
	if raw == "" {
		return n, nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		decodedName, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("paypal: malformed notification field name %q: %w", name, err)
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("paypal: malformed value for %q: %w", decodedName, err)
		}
		n.add(decodedName, decodedValue)
	}
	return n, nil
}

// NewNotification builds a notification from already decoded pairs.
func NewNotification(fields ...Field) *Notification {
	n := &Notification{}
	for _, f := range fields {
		n.add(f.Name, f.Value)
	}
	return n
}

func (n *Notification) add(name, value string) {
	n.Fields = append(n.Fields, Field{Name: name, Value: value})
	v := value
	switch name {
	case FieldPaymentStatus:
		n.PaymentStatus = &v
	case FieldTxnID:
		n.TxnID = &v
	case FieldItemNumber:
		n.ItemNumber = &v
	case FieldReceiverEmail:
		n.ReceiverEmail = &v
	case FieldGross:
		n.Gross = &v
	case FieldCurrency:
		n.Currency = &v
	}
}

// Get returns the last value sent for name.
func (n *Notification) Get(name string) (string, bool) {
	for i := len(n.Fields) - 1; i >= 0; i-- {
		if n.Fields[i].Name == name {
			return n.Fields[i].Value, true
		}
	}
	return "", false
}

// AccountID resolves the account the notification is about from item_number1.
func (n *Notification) AccountID() (string, bool) {
	if n.ItemNumber == nil {
		return "", false
	}
	return AccountIDFromItemNumber(*n.ItemNumber)
}

// AuditJSON renders every received field as a JSON object. Repeated names keep the
// last value.
func (n *Notification) AuditJSON() (json.RawMessage, error) {
	obj := make(map[string]string, len(n.Fields))
	for _, f := range n.Fields {
		obj[f.Name] = f.Value
	}
	return json.Marshal(obj)
}

// AccountIDFromItemNumber drops the fixed AccountIDOffset-character SKU token prefix.
// Values no longer than the prefix carry no account id.
//
// The offset is tied to how this service builds SKUs; notifications for items created
// elsewhere will not resolve to a meaningful id.
func AccountIDFromItemNumber(itemNumber string) (string, bool) {
	if len(itemNumber) <= AccountIDOffset {
		return "", false
	}
	return itemNumber[AccountIDOffset:], true
}
