package account

import "time"

// StatusResponse is what an account holder sees about their own payment state.
type StatusResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	IsActive      bool       `json:"is_active"`
	PaymentStatus *string    `json:"payment_status"`
	TransactionID *string    `json:"transaction_id"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
}

func (a *Account) ToStatusResponse() StatusResponse {
	return StatusResponse{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		IsActive:      a.IsActive,
		PaymentStatus: a.PaymentStatus,
		TransactionID: a.TransactionID,
		ActivatedAt:   a.ActivatedAt,
	}
}
