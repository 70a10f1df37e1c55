package postgres

import (
	"context"
	"time"

	"github.com/frahmantamala/paypal-activation/internal/core/datamodel/paymentsession"
	"github.com/frahmantamala/paypal-activation/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PendingPaymentRepository struct {
	db *gorm.DB
}

func NewPendingPaymentRepository(db *gorm.DB) *PendingPaymentRepository {
	return &PendingPaymentRepository{db: db}
}

// Save upserts on session_id, so a session only ever holds its latest payment.
func (r *PendingPaymentRepository) Save(ctx context.Context, sessionID string, p session.PendingPayment, expiresAt time.Time) error {
	row := paymentsession.PendingPayment{
		SessionID: sessionID,
		AccountID: p.AccountID,
		PaymentID: p.PaymentID,
		ExpiresAt: expiresAt,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "payment_id", "expires_at", "created_at", "updated_at"}),
	}).Create(&row).Error
}

// Take deletes the session's row with RETURNING. Postgres serialises concurrent
// deletes on the row lock, so a second caller gets no row back.
func (r *PendingPaymentRepository) Take(ctx context.Context, sessionID string, now time.Time) (*session.PendingPayment, error) {
	var rows []paymentsession.PendingPayment
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("session_id = ?", sessionID).
		Delete(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || !rows[0].ExpiresAt.After(now) {
		return nil, nil
	}
	return &session.PendingPayment{
		PaymentID: rows[0].PaymentID,
		AccountID: rows[0].AccountID,
		CreatedAt: rows[0].CreatedAt,
	}, nil
}

// CountExpired reports rows the sweeper has not removed yet.
func (r *PendingPaymentRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&paymentsession.PendingPayment{}).
		Where("expires_at <= ?", now).
		Count(&n).Error
	return n, err
}

// DeleteExpired removes rows whose session can no longer present them.
func (r *PendingPaymentRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&paymentsession.PendingPayment{})
	return res.RowsAffected, res.Error
}

// DeleteByAccount drops every pending payment the account still has open.
func (r *PendingPaymentRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&paymentsession.PendingPayment{})
	return res.RowsAffected, res.Error
}
