package payment

import (
	"net/url"

	"github.com/frahmantamala/paypal-activation/internal/core/common/validation"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
)

type CheckoutResponse struct {
	PaymentID   string `json:"payment_id"`
	ApprovalURL string `json:"approval_url"`
}

// RedirectQuery is the query string the processor appends when sending the payer back.
type RedirectQuery struct {
	Success string
	PayerID string
}

func RedirectQueryFrom(q url.Values) RedirectQuery {
	return RedirectQuery{
		Success: q.Get("success"),
		PayerID: q.Get("PayerID"),
	}
}

func (q RedirectQuery) Validate() error {
	validator := validation.NewValidator()

	validator.Field("success", q.Success).Required().OneOf("true", "false")
	if q.Success == "true" {
		validator.Field("PayerID", q.PayerID).Required().MaxLength(64)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (q RedirectQuery) Callback() reconciliation.RedirectCallback {
	return reconciliation.RedirectCallback{
		Approved: q.Success == "true",
		PayerID:  q.PayerID,
	}
}

type NothingToExecuteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
