package notification

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// LogEntry is one verified payment notification and what was done with it.
type LogEntry struct {
	ID            string         `db:"id"`
	TxnID         *string        `db:"txn_id"`
	PaymentStatus *string        `db:"payment_status"`
	ItemNumber    *string        `db:"item_number"`
	AccountID     *string        `db:"account_id"`
	ReceiverEmail *string        `db:"receiver_email"`
	Gross         *string        `db:"gross"`
	Currency      *string        `db:"currency"`
	Outcome       string         `db:"outcome"`
	Payload       types.JSONText `db:"payload"`
	ReceivedAt    time.Time      `db:"received_at"`
}
