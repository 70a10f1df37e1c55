package account

import (
	"encoding/json"
	"time"
)

// Account is a purchasable membership. It starts inactive and is switched on by a
// confirmed payment; the paypal_* columns hold the evidence of that payment.
type Account struct {
	ID                   string          `gorm:"primaryKey;column:id"`
	Email                string          `gorm:"column:email;uniqueIndex;not null"`
	Name                 string          `gorm:"column:name;not null"`
	PasswordHash         string          `gorm:"column:password_hash;not null"`
	IsActive             bool            `gorm:"column:is_active;not null;default:false"`
	PaypalPaymentID      *string         `gorm:"column:paypal_payment_id"`
	PaypalTransactionID  *string         `gorm:"column:paypal_transaction_id"`
	PaypalPaymentStatus  *string         `gorm:"column:paypal_payment_status"`
	PaypalPaymentDetails json.RawMessage `gorm:"column:paypal_payment_details;type:jsonb"`
	ActivatedAt          *time.Time      `gorm:"column:activated_at"`
	CreatedAt            time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Account) TableName() string {
	return "accounts"
}
