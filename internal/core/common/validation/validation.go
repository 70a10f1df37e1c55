package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	errors "github.com/frahmantamala/paypal-activation/internal"
)

var (
	decimalPattern  = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return errors.NewValidationFieldError(name, fmt.Sprintf("%s is required", name), errors.ErrCodeValidationFailed)
			}
		case *string:
			if v == nil || strings.TrimSpace(*v) == "" {
				return errors.NewValidationFieldError(name, fmt.Sprintf("%s is required", name), errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinLength(min int) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) < min {
				message := fmt.Sprintf("%s must be at least %d characters", name, min)
				return errors.NewValidationFieldError(name, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", name, max)
				return errors.NewValidationFieldError(name, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

// Decimal accepts an unsigned amount with at most two fractional digits, the only
// shape the processor takes for prices and totals.
func (fv *FieldValidator) Decimal(code errors.ErrorCode) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			if !decimalPattern.MatchString(v) {
				return errors.NewValidationFieldError(name, fmt.Sprintf("%s must be a decimal amount like 1.00", name), code)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) PositiveInt(code errors.ErrorCode) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return errors.NewValidationFieldError(name, fmt.Sprintf("%s must be a positive whole number", name), code)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) CurrencyCode() *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			if !currencyPattern.MatchString(v) {
				return errors.NewValidationFieldError(name, fmt.Sprintf("%s must be a three letter ISO currency code", name), errors.ErrCodeInvalidCurrency)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) OneOf(allowed ...string) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			for _, a := range allowed {
				if v == a {
					return nil
				}
			}
			message := fmt.Sprintf("%s must be one of %s", name, strings.Join(allowed, ", "))
			return errors.NewValidationFieldError(name, message, errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}
			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
				continue
			}
			validationErrors = append(validationErrors, errors.ValidationError{
				Field:   field.FieldName,
				Message: appErr.Message,
				Code:    string(appErr.Code),
			})
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

// ValidatePaymentOptions checks the configured checkout options. Empty values are
// allowed because the intent builder substitutes defaults for them.
func ValidatePaymentOptions(opts errors.PaymentOptions) *errors.AppError {
	validator := NewValidator()
	validator.Field("item.quantity", opts.Item.Quantity).PositiveInt(errors.ErrCodeInvalidQuantity)
	validator.Field("item.price", opts.Item.Price).Decimal(errors.ErrCodeInvalidAmount)
	validator.Field("item.currency", opts.Item.Currency).CurrencyCode()
	validator.Field("item.name", opts.Item.Name).MaxLength(127)
	validator.Field("amount.total", opts.Amount.Total).Decimal(errors.ErrCodeInvalidAmount)
	validator.Field("amount.currency", opts.Amount.Currency).CurrencyCode()
	validator.Field("transaction.description", opts.Transaction.Description).MaxLength(127)
	validator.Field("payer.payment_method", opts.Payer.PaymentMethod).OneOf("paypal")
	return validator.Validate()
}

func ValidateCredentials(email, password string) *errors.AppError {
	validator := NewValidator()
	validator.Field("email", email).Required().MaxLength(255)
	validator.Field("password", password).Required().MinLength(8)
	return validator.Validate()
}
