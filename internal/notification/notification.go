package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	notificationDatamodel "github.com/frahmantamala/paypal-activation/internal/core/datamodel/notification"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
)

const (
	OutcomeFailed = "failed"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Entry is the API view of an audit log row.
type Entry struct {
	ID            string          `json:"id"`
	TxnID         *string         `json:"txn_id,omitempty"`
	PaymentStatus *string         `json:"payment_status,omitempty"`
	Gross         *string         `json:"gross,omitempty"`
	Currency      *string         `json:"currency,omitempty"`
	Outcome       string          `json:"outcome"`
	Payload       json.RawMessage `json:"payload"`
	ReceivedAt    time.Time       `json:"received_at"`
}

type RepositoryAPI interface {
	Append(ctx context.Context, e *notificationDatamodel.LogEntry) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]notificationDatamodel.LogEntry, error)
}

// AuditLog appends every verified notification to ipn_logs. Unverified ones are never
// written.
type AuditLog struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditLog(repo RepositoryAPI, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{repo: repo, logger: logger, now: time.Now}
}

// Record stores n with its outcome. A failure here is logged and swallowed: the
// account write already happened and the processor must still get its acknowledgement.
func (a *AuditLog) Record(ctx context.Context, n *paypal.Notification, outcome string) {
	payload, err := n.AuditJSON()
	if err != nil {
		a.logger.Error("failed to encode notification for audit", "error", err)
		return
	}

	entry := &notificationDatamodel.LogEntry{
		ID:            uuid.New().String(),
		TxnID:         n.TxnID,
		PaymentStatus: n.PaymentStatus,
		ItemNumber:    n.ItemNumber,
		ReceiverEmail: n.ReceiverEmail,
		Gross:         n.Gross,
		Currency:      n.Currency,
		Outcome:       outcome,
		Payload:       types.JSONText(payload),
		ReceivedAt:    a.now().UTC(),
	}
	if id, ok := n.AccountID(); ok {
		entry.AccountID = &id
	}

	if err := a.repo.Append(ctx, entry); err != nil {
		a.logger.Error("failed to append notification audit log",
			"txn_id", deref(n.TxnID),
			"outcome", outcome,
			"error", err)
	}
}

func (a *AuditLog) ListForAccount(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := a.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			ID:            r.ID,
			TxnID:         r.TxnID,
			PaymentStatus: r.PaymentStatus,
			Gross:         r.Gross,
			Currency:      r.Currency,
			Outcome:       r.Outcome,
			Payload:       json.RawMessage(r.Payload),
			ReceivedAt:    r.ReceivedAt,
		})
	}
	return entries, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
