package store

import (
	"context"
	"time"

	"dinein-service/internal/models"

	"github.com/shopspring/decimal"
)

// GetSession retrieves a session by ID
func (q *Queries) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := q.get(ctx, &s, "SELECT * FROM sessions WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &s, nil
}

// LockSession retrieves a session and holds its row lock until the transaction ends
func (q *Queries) LockSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := q.get(ctx, &s, "SELECT * FROM sessions WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindActiveSession returns the most recently started ACTIVE session of a table
func (q *Queries) FindActiveSession(ctx context.Context, tableID string) (*models.Session, error) {
	var s models.Session
	err := q.get(ctx, &s, `
		SELECT * FROM sessions
		WHERE table_id = $1 AND status = $2
		ORDER BY started_at DESC
		LIMIT 1`, tableID, models.SessionStatusActive)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new session
func (q *Queries) CreateSession(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, table_id, restaurant_id, status, started_at, total_amount, paid_amount, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING updated_at`

	return q.get(ctx, &s.UpdatedAt, query,
		s.ID, s.TableID, s.RestaurantID, s.Status, s.StartedAt, s.TotalAmount, s.PaidAmount, s.PaymentStatus)
}

// AddSessionTotal increments total_amount in place and returns the new total
func (q *Queries) AddSessionTotal(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.get(ctx, &total, `
		UPDATE sessions SET total_amount = total_amount + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING total_amount`, amount, id)
	return total, err
}

// UpdateSessionPayment stores the recomputed paid amount and payment status
func (q *Queries) UpdateSessionPayment(ctx context.Context, id string, paid decimal.Decimal, status models.PaymentStatus) error {
	n, err := q.exec(ctx, `
		UPDATE sessions
		SET paid_amount = $1, payment_status = $2,
		    is_ready_for_billing = ($2 = 'PAID'), updated_at = NOW()
		WHERE id = $3`, paid, status, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseSession moves a session to a terminal status
func (q *Queries) CloseSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time, reason *string) error {
	n, err := q.exec(ctx, `
		UPDATE sessions
		SET status = $1, ended_at = $2, cancellation_reason = $3, updated_at = NOW()
		WHERE id = $4`, status, endedAt, reason, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSessionCoupon records the coupon applied to a session
func (q *Queries) SetSessionCoupon(ctx context.Context, id, couponID string) error {
	n, err := q.exec(ctx,
		"UPDATE sessions SET coupon_id = $1, updated_at = NOW() WHERE id = $2", couponID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
