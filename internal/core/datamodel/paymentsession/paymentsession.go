package paymentsession

import "time"

// PendingPayment binds a browser session to the processor payment it is waiting on.
type PendingPayment struct {
	SessionID string    `gorm:"primaryKey;column:session_id"`
	AccountID string    `gorm:"column:account_id;not null;index"`
	PaymentID string    `gorm:"column:payment_id;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (PendingPayment) TableName() string {
	return "pending_payments"
}
