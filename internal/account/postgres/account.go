package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/account"
	accountDatamodel "github.com/frahmantamala/paypal-activation/internal/core/datamodel/account"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*account.Account, error) {
	var a accountDatamodel.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAccountNotFound
		}
		return nil, err
	}
	return account.FromDataModel(&a), nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	var a accountDatamodel.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAccountNotFound
		}
		return nil, err
	}
	return account.FromDataModel(&a), nil
}

func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	return r.db.WithContext(ctx).Create(account.ToDataModel(a)).Error
}

// Activate writes is_active, the transaction id, the status and the details in one
// UPDATE. Redirect activations are guarded on is_active = false so a notification's
// evidence is never replaced by the redirect's. Notification activations only count as
// a change when the account was inactive or held another transaction; otherwise the
// evidence is refreshed in place and false is returned.
func (r *AccountRepository) Activate(ctx context.Context, id string, a account.Activation) (bool, error) {
	details := string(a.Details)
	if details == "" {
		details = "{}"
	}
	updates := map[string]interface{}{
		"is_active":              true,
		"paypal_transaction_id":  a.TransactionID,
		"paypal_payment_status":  a.PaymentStatus,
		"paypal_payment_details": details,
		"activated_at":           gorm.Expr("COALESCE(activated_at, CURRENT_TIMESTAMP)"),
		"updated_at":             gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if a.PaymentID != nil {
		updates["paypal_payment_id"] = *a.PaymentID
	}

	q := r.db.WithContext(ctx).Model(&accountDatamodel.Account{}).Where("id = ?", id)
	if a.Source == account.SourceRedirect {
		q = q.Where("is_active = ?", false)
	} else {
		q = q.Where("NOT (is_active = ? AND COALESCE(paypal_transaction_id, '') = ?)", true, a.TransactionID)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	switch a.Source {
	case account.SourceRedirect:
		if a.PaymentID != nil {
			if err := r.recordPaymentID(ctx, id, *a.PaymentID); err != nil {
				return false, err
			}
		}
	default:
		refreshed, err := r.refreshEvidence(ctx, id, a.PaymentStatus, details)
		if err != nil {
			return false, err
		}
		if refreshed {
			return false, nil
		}
	}
	return false, r.ensureExists(ctx, id)
}

// LogPaymentStatus records a non-terminal status. Active accounts keep theirs.
func (r *AccountRepository) LogPaymentStatus(ctx context.Context, id string, status string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&accountDatamodel.Account{}).
		Where("id = ? AND is_active = ?", id, false).
		Updates(map[string]interface{}{
			"paypal_payment_status": status,
			"updated_at":            gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, r.ensureExists(ctx, id)
}

func (r *AccountRepository) recordPaymentID(ctx context.Context, id, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&accountDatamodel.Account{}).
		Where("id = ? AND paypal_payment_id IS NULL", id).
		Update("paypal_payment_id", paymentID).Error
}

// refreshEvidence overwrites the stored status and details of an account that is
// already active on the same transaction.
func (r *AccountRepository) refreshEvidence(ctx context.Context, id, status, details string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&accountDatamodel.Account{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"paypal_payment_status":  status,
			"paypal_payment_details": details,
			"updated_at":             gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *AccountRepository) ensureExists(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&accountDatamodel.Account{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return internal.ErrAccountNotFound
	}
	return nil
}
