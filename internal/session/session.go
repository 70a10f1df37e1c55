package session

import (
	"context"
	"time"
)

// PendingPayment links a browser session to the payment it was redirected to approve.
type PendingPayment struct {
	PaymentID string
	AccountID string
	CreatedAt time.Time
}

// Store persists at most one pending payment per session id.
//
// Take removes the session's row and returns it in the same statement, so of two
// concurrent callers only one ever sees the payment. An expired row is removed and
// reported as absent.
type Store interface {
	Save(ctx context.Context, sessionID string, p PendingPayment, expiresAt time.Time) error
	Take(ctx context.Context, sessionID string, now time.Time) (*PendingPayment, error)
}

// PaymentHandle is the single-use pending-payment slot of a session.
type PaymentHandle struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewPaymentHandle(store Store, ttl time.Duration) *PaymentHandle {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &PaymentHandle{store: store, ttl: ttl, now: time.Now}
}

// Store replaces whatever payment the session was waiting on.
func (h *PaymentHandle) Store(ctx context.Context, sessionID string, p PendingPayment) error {
	now := h.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return h.store.Save(ctx, sessionID, p, now.Add(h.ttl))
}

// Take consumes the session's pending payment. It returns nil when there is none.
func (h *PaymentHandle) Take(ctx context.Context, sessionID string) (*PendingPayment, error) {
	if sessionID == "" {
		return nil, nil
	}
	return h.store.Take(ctx, sessionID, h.now())
}
