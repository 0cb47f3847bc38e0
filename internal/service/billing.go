package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/pricing"
	"dinein-service/internal/store"
	"dinein-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// billOrderLimit bounds the orders aggregated into one bill.
const billOrderLimit = 1000

// GenerateBill returns the session's bill, generating it if the session is
// fully paid and has none yet.
func (s *PaymentService) GenerateBill(ctx context.Context, sessionID string) (*models.Bill, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GenerateBill")
	var err error
	defer func() { util.EndSpan(span, err) }()

	var (
		bill    *models.Bill
		created bool
		session *models.Session
		table   *models.Table
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		var err error
		session, err = tx.LockSession(ctx, sessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}

		existing, err := tx.GetBillBySession(ctx, session.ID)
		if err == nil {
			bill = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if session.PaymentStatus != models.PaymentStatusPaid {
			return apperr.Wrap(apperr.ErrNotFullyPaid, "paid %s of %s", session.PaidAmount, session.TotalAmount)
		}

		if session.Status != models.SessionStatusActive {
			bill, created, err = s.buildAndInsertBill(ctx, tx, session)
			return err
		}
		bill, created, err = s.settle(ctx, tx, session)
		if err != nil {
			return err
		}
		table, err = releaseTable(ctx, tx, session)
		return err
	})
	if err != nil {
		err = classify("generate bill", err)
		return nil, err
	}

	if created {
		s.announceBill(ctx, bill)
	}
	if table != nil {
		util.SessionsClosedTotal.WithLabelValues(string(models.SessionStatusCompleted)).Inc()
		announceTableFree(s.bus, table)
		publishSessionClosed(ctx, s.events, s.logger, session)
	}
	return bill, nil
}

// GetBill retrieves the bill of a session
func (s *PaymentService) GetBill(ctx context.Context, sessionID string) (*models.Bill, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetBill")
	defer span.End()

	bill, err := s.repo.GetBillBySession(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, apperr.ErrBillNotFound)
	}
	return bill, nil
}

// settle generates the bill and completes the session. Callers hold the
// session row lock.
func (s *PaymentService) settle(ctx context.Context, tx store.Repository, session *models.Session) (*models.Bill, bool, error) {
	bill, created, err := s.buildAndInsertBill(ctx, tx, session)
	if err != nil {
		return nil, false, err
	}

	endedAt := s.now().UTC()
	if err := tx.CloseSession(ctx, session.ID, models.SessionStatusCompleted, endedAt, nil); err != nil {
		return nil, false, err
	}
	session.Status = models.SessionStatusCompleted
	session.EndedAt = &endedAt
	return bill, created, nil
}

// buildAndInsertBill is exactly-once per session: an existing bill short
// circuits, and the unique session_id on bills rejects a concurrent second
// insert.
func (s *PaymentService) buildAndInsertBill(ctx context.Context, tx store.Repository, session *models.Session) (*models.Bill, bool, error) {
	existing, err := tx.GetBillBySession(ctx, session.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	restaurant, err := tx.GetRestaurant(ctx, session.RestaurantID)
	if err != nil {
		return nil, false, lookup(err, apperr.ErrRestaurantNotFound)
	}
	taxRate := s.settings.DefaultTaxRate
	if restaurant.TaxRate.Valid {
		taxRate = restaurant.TaxRate.Decimal
	}
	serviceRate := s.settings.DefaultServiceChargeRate
	if restaurant.ServiceChargeRate.Valid {
		serviceRate = restaurant.ServiceChargeRate.Decimal
	}

	orders, err := tx.ListOrders(ctx, store.OrderFilter{SessionID: session.ID, Limit: billOrderLimit})
	if err != nil {
		return nil, false, err
	}

	subtotal := session.TotalAmount
	discount, err := s.couponDiscount(ctx, tx, session, subtotal)
	if err != nil {
		return nil, false, err
	}
	breakdown := pricing.Summarize(subtotal, taxRate, serviceRate, discount)

	payments, err := tx.ListPayments(ctx, session.ID, models.PaymentStatusPaid)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	bill := &models.Bill{
		SessionID:      session.ID,
		RestaurantID:   session.RestaurantID,
		TableID:        session.TableID,
		Items:          billItems(orders),
		Subtotal:       breakdown.Subtotal,
		TaxAmount:      breakdown.TaxAmount,
		ServiceCharge:  breakdown.ServiceCharge,
		DiscountAmount: breakdown.DiscountAmount,
		FinalAmount:    breakdown.FinalAmount,
		PaymentMethods: summarizePayments(payments),
		GeneratedAt:    now,
	}

	attempts := s.settings.BillNumberAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		bill.ID = newID()
		bill.BillNumber = s.billNumber(now)
		inserted, err := tx.InsertBill(ctx, bill)
		if errors.Is(err, store.ErrConflict) {
			return nil, false, apperr.Wrap(apperr.ErrStaleState, "bill for session %s already exists", session.ID)
		}
		if err != nil {
			return nil, false, err
		}
		if inserted {
			util.BillsGeneratedTotal.Inc()
			return bill, true, nil
		}
		util.BillNumberCollisionsTotal.Inc()
		s.logger.Warn("Bill number collision, retrying",
			zap.String("bill_number", bill.BillNumber),
			zap.Int("attempt", i+1))
	}
	return nil, false, apperr.ErrBillNumberExhausted
}

// couponDiscount re-validates the session's coupon against the final
// subtotal and consumes one use. An expired or exhausted coupon yields no
// discount rather than blocking settlement.
func (s *PaymentService) couponDiscount(ctx context.Context, tx store.Repository, session *models.Session, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if session.CouponID == nil {
		return decimal.Zero, nil
	}
	coupon, err := tx.GetCoupon(ctx, *session.CouponID)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if verr := pricing.ValidateCoupon(coupon, subtotal, s.now()); verr != nil {
		s.logger.Warn("Coupon no longer applicable at billing",
			zap.String("session_id", session.ID),
			zap.String("coupon", coupon.Code),
			zap.Error(verr))
		return decimal.Zero, nil
	}

	discount := pricing.CouponDiscount(coupon, subtotal)
	if !discount.IsPositive() {
		return decimal.Zero, nil
	}
	consumed, err := tx.IncrementCouponUsage(ctx, coupon.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !consumed {
		s.logger.Warn("Coupon usage limit reached at billing",
			zap.String("session_id", session.ID),
			zap.String("coupon", coupon.Code))
		return decimal.Zero, nil
	}
	return discount, nil
}

// billItems flattens the session's orders oldest first, keeping variant and
// add-on labels.
func billItems(orders []models.Order) models.BillItems {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PlacedAt.Before(sorted[j].PlacedAt) })

	items := models.BillItems{}
	for _, o := range sorted {
		for _, it := range o.Items {
			bi := models.BillItem{
				MenuItemID: it.MenuItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				UnitPrice:  it.UnitPrice,
				TotalPrice: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
			}
			if it.SelectedVariant != nil {
				bi.Variant = it.SelectedVariant.Name
			}
			for _, a := range it.SelectedAddOns {
				label := a.Name
				if a.Quantity > 1 {
					label = fmt.Sprintf("%s x%d", a.Name, a.Quantity)
				}
				bi.AddOns = append(bi.AddOns, label)
			}
			items = append(items, bi)
		}
	}
	return items
}

// summarizePayments groups payments by method in first-seen order.
func summarizePayments(payments []models.Payment) models.PaymentSummaries {
	summary := models.PaymentSummaries{}
	index := make(map[models.PaymentMethod]int)
	for _, p := range payments {
		i, ok := index[p.Method]
		if !ok {
			i = len(summary)
			index[p.Method] = i
			summary = append(summary, models.PaymentMethodSummary{Method: p.Method, Amount: decimal.Zero})
		}
		summary[i].Amount = summary[i].Amount.Add(p.Amount)
		summary[i].Count++
	}
	return summary
}

// newBillNumber is BILL-<unix millis>-<8 random hex chars>.
func newBillNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("BILL-%d-%s", at.UnixMilli(), suffix)
}

func (s *PaymentService) announceBill(ctx context.Context, bill *models.Bill) {
	s.logger.Info("Bill generated",
		zap.String("bill_number", bill.BillNumber),
		zap.String("session_id", bill.SessionID),
		zap.String("final_amount", bill.FinalAmount.String()))

	event := &models.BillGeneratedEvent{
		BaseEvent:    newEventBase(models.EventTypeBillGenerated),
		BillID:       bill.ID,
		BillNumber:   bill.BillNumber,
		SessionID:    bill.SessionID,
		RestaurantID: bill.RestaurantID,
		FinalAmount:  bill.FinalAmount,
	}
	if err := s.events.PublishBillGenerated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BillGenerated event", zap.Error(err))
	}
}
