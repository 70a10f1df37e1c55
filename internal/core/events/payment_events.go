package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeCheckoutStarted       = "checkout.started"
	EventTypeCheckoutCancelled     = "checkout.cancelled"
	EventTypeAccountActivated      = "account.activated"
	EventTypePaymentStatusLogged   = "payment.status_logged"
	EventTypePaymentRejected       = "payment.rejected"
	EventTypeNotificationDiscarded = "notification.discarded"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type CheckoutStartedEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	PaymentID string `json:"payment_id"`
}

func NewCheckoutStartedEvent(accountID, paymentID string) *CheckoutStartedEvent {
	return &CheckoutStartedEvent{
		BaseEvent: newBase(EventTypeCheckoutStarted, map[string]interface{}{
			"account_id": accountID,
			"payment_id": paymentID,
		}),
		AccountID: accountID,
		PaymentID: paymentID,
	}
}

type CheckoutCancelledEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	PaymentID string `json:"payment_id"`
}

func NewCheckoutCancelledEvent(accountID, paymentID string) *CheckoutCancelledEvent {
	return &CheckoutCancelledEvent{
		BaseEvent: newBase(EventTypeCheckoutCancelled, map[string]interface{}{
			"account_id": accountID,
			"payment_id": paymentID,
		}),
		AccountID: accountID,
		PaymentID: paymentID,
	}
}

// AccountActivatedEvent is published whenever an activation write changed the account.
type AccountActivatedEvent struct {
	BaseEvent
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	Source        string `json:"source"`
}

func NewAccountActivatedEvent(accountID, transactionID, source string) *AccountActivatedEvent {
	return &AccountActivatedEvent{
		BaseEvent: newBase(EventTypeAccountActivated, map[string]interface{}{
			"account_id":     accountID,
			"transaction_id": transactionID,
			"source":         source,
		}),
		AccountID:     accountID,
		TransactionID: transactionID,
		Source:        source,
	}
}

type PaymentStatusLoggedEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

func NewPaymentStatusLoggedEvent(accountID, status string) *PaymentStatusLoggedEvent {
	return &PaymentStatusLoggedEvent{
		BaseEvent: newBase(EventTypePaymentStatusLogged, map[string]interface{}{
			"account_id": accountID,
			"status":     status,
		}),
		AccountID: accountID,
		Status:    status,
	}
}

type PaymentRejectedEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	PaymentID string `json:"payment_id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

func NewPaymentRejectedEvent(accountID, paymentID, name, message string) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{
		BaseEvent: newBase(EventTypePaymentRejected, map[string]interface{}{
			"account_id": accountID,
			"payment_id": paymentID,
			"name":       name,
			"message":    message,
		}),
		AccountID: accountID,
		PaymentID: paymentID,
		Name:      name,
		Message:   message,
	}
}

// NotificationDiscardedEvent carries no payload fields; an unverified notification is
// not trusted enough to report on.
type NotificationDiscardedEvent struct {
	BaseEvent
}

func NewNotificationDiscardedEvent() *NotificationDiscardedEvent {
	return &NotificationDiscardedEvent{
		BaseEvent: newBase(EventTypeNotificationDiscarded, map[string]interface{}{}),
	}
}
