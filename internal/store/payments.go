package store

import (
	"context"

	"dinein-service/internal/models"

	"github.com/shopspring/decimal"
)

// CreatePayment creates a new payment record
func (q *Queries) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, session_id, amount, method, status, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return q.get(ctx, &p.CreatedAt, query,
		p.ID, p.SessionID, p.Amount, p.Method, p.Status, p.TransactionID)
}

// GetPayment retrieves a payment by ID
func (q *Queries) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := q.get(ctx, &p, "SELECT * FROM payments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &p, nil
}

// LockPayment retrieves a payment and holds its row lock
func (q *Queries) LockPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := q.get(ctx, &p, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePayment writes the settlement fields of a payment
func (q *Queries) UpdatePayment(ctx context.Context, p *models.Payment) error {
	n, err := q.exec(ctx, `
		UPDATE payments
		SET status = $1, transaction_id = $2, failure_reason = $3, processed_at = $4
		WHERE id = $5`,
		p.Status, p.TransactionID, p.FailureReason, p.ProcessedAt, p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SumPaidPayments sums the PAID payments of a session
func (q *Queries) SumPaidPayments(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.get(ctx, &sum,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE session_id = $1 AND status = $2",
		sessionID, models.PaymentStatusPaid)
	return sum, err
}

// SumOpenPayments sums the PENDING and PAID payments of a session, the
// amount already committed against its total
func (q *Queries) SumOpenPayments(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.get(ctx, &sum,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE session_id = $1 AND status IN ($2, $3)",
		sessionID, models.PaymentStatusPending, models.PaymentStatusPaid)
	return sum, err
}

// ListPayments lists a session's payments, optionally filtered by status
func (q *Queries) ListPayments(ctx context.Context, sessionID string, status models.PaymentStatus) ([]models.Payment, error) {
	payments := []models.Payment{}
	var err error
	if status == "" {
		err = q.q.SelectContext(ctx, &payments,
			"SELECT * FROM payments WHERE session_id = $1 ORDER BY created_at", sessionID)
	} else {
		err = q.q.SelectContext(ctx, &payments,
			"SELECT * FROM payments WHERE session_id = $1 AND status = $2 ORDER BY created_at", sessionID, status)
	}
	return payments, mapErr(err)
}

// GetBillBySession retrieves the bill of a session
func (q *Queries) GetBillBySession(ctx context.Context, sessionID string) (*models.Bill, error) {
	var b models.Bill
	if err := q.get(ctx, &b, "SELECT * FROM bills WHERE session_id = $1", sessionID); err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertBill inserts a bill. It returns false without error when the bill
// number is already taken so the caller can retry with a fresh number.
func (q *Queries) InsertBill(ctx context.Context, b *models.Bill) (bool, error) {
	n, err := q.exec(ctx, `
		INSERT INTO bills (id, session_id, restaurant_id, table_id, items, subtotal, tax_amount,
		                   service_charge, discount_amount, final_amount, payment_methods, bill_number, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (bill_number) DO NOTHING`,
		b.ID, b.SessionID, b.RestaurantID, b.TableID, b.Items, b.Subtotal, b.TaxAmount,
		b.ServiceCharge, b.DiscountAmount, b.FinalAmount, b.PaymentMethods, b.BillNumber, b.GeneratedAt)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetCoupon retrieves a coupon by ID
func (q *Queries) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	var c models.Coupon
	if err := q.get(ctx, &c, "SELECT * FROM coupons WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCouponByCode retrieves a restaurant's coupon by its code
func (q *Queries) GetCouponByCode(ctx context.Context, restaurantID, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := q.get(ctx, &c,
		"SELECT * FROM coupons WHERE restaurant_id = $1 AND UPPER(code) = UPPER($2)", restaurantID, code)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementCouponUsage consumes one use of a coupon unless its usage limit is
// already reached. It reports whether a use was consumed.
func (q *Queries) IncrementCouponUsage(ctx context.Context, id string) (bool, error) {
	n, err := q.exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
