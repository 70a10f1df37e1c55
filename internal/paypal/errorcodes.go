package paypal

// defaultErrorCodes are the processor error names that mean the payer's payment was
// refused rather than that the call itself failed.
var defaultErrorCodes = []string{
	"INTERNAL_SERVICE_ERROR",
	"VALIDATION_ERROR",
	"EXPIRED_CREDIT_CARD",
	"EXPIRED_CREDIT_CARD_TOKEN",
	"INVALID_ACCOUNT_NUMBER",
	"INVALID_RESOURCE_ID",
	"DUPLICATE_REQUEST_ID",
	"TRANSACTION_LIMIT_EXCEEDED",
	"TRANSACTION_REFUSED",
	"REFUND_TIME_LIMIT_EXCEEDED",
	"FULL_REFUND_NOT_ALLOWED_AFTER_PARTIAL_REFUND",
	"TRANSACTION_ALREADY_REFUNDED",
	"PERMISSION_DENIED",
	"CREDIT_CARD_REFUSED",
	"CREDIT_CARD_CVV_CHECK_FAILED",
	"PAYEE_ACCOUNT_RESTRICTED",
	"PAYMENT_NOT_APPROVED_FOR_EXECUTION",
	"INVALID_PAYER_ID",
	"PAYEE_ACCOUNT_LOCKED_OR_CLOSED",
	"PAYMENT_APPROVAL_EXPIRED",
	"PAYMENT_EXPIRED",
	"DATA_RETRIEVAL",
	"PAYEE_ACCOUNT_NO_CONFIRMED_EMAIL",
	"PAYMENT_STATE_INVALID",
	"AMOUNT_MISMATCH",
	"CURRENCY_NOT_ALLOWED",
	"CURRENCY_MISMATCH",
	"AUTHORIZATION_EXPIRED",
	"INVALID_ARGUMENT",
	"PAYER_ID_MISSING_FOR_CARD_TOKEN",
	"CARD_TOKEN_PAYER_MISMATCH",
	"AUTHORIZATION_CANNOT_BE_VOIDED",
	"RATE_LIMIT_REACHED",
	"UNAUTHORIZED_PAYMENT",
	"DCC_UNSUPPORTED_CURRENCY_CC_TYPE",
	"DCC_CC_TYPE_NOT_SUPPORTED",
	"DCC_REAUTHORIZATION_NOT_ALLOWED",
	"CANNOT_REAUTH_INSIDE_HONOR_PERIOD",
}

// ErrorCodes is an immutable set of processor error names.
type ErrorCodes struct {
	names map[string]struct{}
}

func NewErrorCodes(names ...string) ErrorCodes {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return ErrorCodes{names: set}
}

// DefaultErrorCodes returns the standard rejection set.
func DefaultErrorCodes() ErrorCodes {
	return NewErrorCodes(defaultErrorCodes...)
}

func (c ErrorCodes) Contains(name string) bool {
	_, ok := c.names[name]
	return ok
}

func (c ErrorCodes) Len() int {
	return len(c.names)
}
