package account

import (
	"context"
	"encoding/json"
	"time"

	accountDatamodel "github.com/frahmantamala/paypal-activation/internal/core/datamodel/account"
)

// ActivationSource says which confirmation channel produced an activation.
type ActivationSource string

const (
	SourceNotification ActivationSource = "notification"
	SourceRedirect     ActivationSource = "redirect"
)

type Account struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	PasswordHash   string          `json:"-"`
	IsActive       bool            `json:"is_active"`
	PaymentID      *string         `json:"paypal_payment_id,omitempty"`
	TransactionID  *string         `json:"paypal_transaction_id,omitempty"`
	PaymentStatus  *string         `json:"paypal_payment_status,omitempty"`
	PaymentDetails json.RawMessage `json:"-"`
	ActivatedAt    *time.Time      `json:"activated_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Activation is the evidence written to an account when a payment completes.
type Activation struct {
	TransactionID string
	PaymentStatus string
	Details       json.RawMessage
	PaymentID     *string
	Source        ActivationSource
}

// RepositoryAPI is the account store. Every write is one atomic UPDATE statement.
//
// Activate returns true only when the account became active or moved to another
// transaction. A redirect-sourced activation never touches an account that is
// already active, while a notification-sourced one always leaves its evidence. LogPaymentStatus only writes to accounts
// that are not active yet.
type RepositoryAPI interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Activate(ctx context.Context, id string, a Activation) (bool, error)
	LogPaymentStatus(ctx context.Context, id string, status string) (bool, error)
	Create(ctx context.Context, a *Account) error
}

func FromDataModel(a *accountDatamodel.Account) *Account {
	return &Account{
		ID:             a.ID,
		Email:          a.Email,
		Name:           a.Name,
		PasswordHash:   a.PasswordHash,
		IsActive:       a.IsActive,
		PaymentID:      a.PaypalPaymentID,
		TransactionID:  a.PaypalTransactionID,
		PaymentStatus:  a.PaypalPaymentStatus,
		PaymentDetails: a.PaypalPaymentDetails,
		ActivatedAt:    a.ActivatedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func ToDataModel(a *Account) *accountDatamodel.Account {
	return &accountDatamodel.Account{
		ID:                   a.ID,
		Email:                a.Email,
		Name:                 a.Name,
		PasswordHash:         a.PasswordHash,
		IsActive:             a.IsActive,
		PaypalPaymentID:      a.PaymentID,
		PaypalTransactionID:  a.TransactionID,
		PaypalPaymentStatus:  a.PaymentStatus,
		PaypalPaymentDetails: a.PaymentDetails,
		ActivatedAt:          a.ActivatedAt,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}
