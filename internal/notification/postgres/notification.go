package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	notificationDatamodel "github.com/frahmantamala/paypal-activation/internal/core/datamodel/notification"
)

type LogRepository struct {
	db *sqlx.DB
}

func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(ctx context.Context, e *notificationDatamodel.LogEntry) error {
	query := r.db.Rebind(`
INSERT INTO ipn_logs (id, txn_id, payment_status, item_number, account_id,
	receiver_email, gross, currency, outcome, payload, received_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.TxnID, e.PaymentStatus, e.ItemNumber, e.AccountID,
		e.ReceiverEmail, e.Gross, e.Currency, e.Outcome, e.Payload, e.ReceivedAt)
	if err != nil {
		return fmt.Errorf("append ipn log: %w", err)
	}
	return nil
}

func (r *LogRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]notificationDatamodel.LogEntry, error) {
	query := r.db.Rebind(`
SELECT id, txn_id, payment_status, item_number, account_id,
	receiver_email, gross, currency, outcome, payload, received_at
FROM ipn_logs
WHERE account_id = ?
ORDER BY received_at DESC, id
LIMIT ?`)

	var entries []notificationDatamodel.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, accountID, limit); err != nil {
		return nil, fmt.Errorf("list ipn logs: %w", err)
	}
	return entries, nil
}
