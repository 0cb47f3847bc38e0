package service

import (
	"context"
	"strings"
	"time"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/realtime"
	"dinein-service/internal/store"
	"dinein-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records payments against sessions and settles them. The
// gateway is external: InitiatePayment returns a pending payment and the
// gateway later calls ConfirmPayment or FailPayment.
type PaymentService struct {
	repo       Transactor
	bus        Broadcaster
	events     EventPublisher
	settings   Settings
	logger     *zap.Logger
	now        func() time.Time
	billNumber func(time.Time) string
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo Transactor, bus Broadcaster, events EventPublisher, settings Settings) *PaymentService {
	return &PaymentService{
		repo:       repo,
		bus:        bus,
		events:     events,
		settings:   settings,
		logger:     util.GetLogger(),
		now:        time.Now,
		billNumber: newBillNumber,
	}
}

// InitiatePaymentRequest starts a payment for part or all of a session
type InitiatePaymentRequest struct {
	SessionID string               `json:"sessionId" binding:"required"`
	Amount    decimal.Decimal      `json:"amount" binding:"required"`
	Method    models.PaymentMethod `json:"method" binding:"required"`
}

// InitiatePayment creates a PENDING payment. The amount must be positive and
// must not exceed the total minus the payments already pending or paid.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiatePayment")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if !req.Method.Valid() {
		err = apperr.Wrap(apperr.ErrInvalidInput, "unsupported payment method %q", req.Method)
		return nil, err
	}
	if !req.Amount.IsPositive() {
		err = apperr.Wrap(apperr.ErrInvalidAmount, "amount must be positive")
		return nil, err
	}
	amount := req.Amount.Round(2)

	payment := &models.Payment{
		ID:        newID(),
		SessionID: req.SessionID,
		Amount:    amount,
		Method:    req.Method,
		Status:    models.PaymentStatusPending,
	}
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		session, err := tx.LockSession(ctx, req.SessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}

		committed, err := tx.SumOpenPayments(ctx, session.ID)
		if err != nil {
			return err
		}
		outstanding := session.TotalAmount.Sub(committed)
		if amount.GreaterThan(outstanding) {
			return apperr.Wrap(apperr.ErrInvalidAmount, "amount %s exceeds outstanding %s", amount, outstanding)
		}

		return tx.CreatePayment(ctx, payment)
	})
	if err != nil {
		err = classify("initiate payment", err)
		return nil, err
	}

	util.PaymentsInitiatedTotal.WithLabelValues(string(payment.Method)).Inc()
	s.logger.Info("Payment initiated",
		zap.String("payment_id", payment.ID),
		zap.String("session_id", payment.SessionID),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", string(payment.Method)))

	s.bus.Broadcast(models.RealtimePaymentStatusChanged, models.PaymentStatusChangedPayload{
		SessionID: payment.SessionID,
		PaymentID: payment.ID,
		Status:    payment.Status,
		Amount:    payment.Amount,
	}, realtime.SessionRoom(payment.SessionID))

	return payment, nil
}

// Settlement is the outcome of a confirmed payment
type Settlement struct {
	Payment *models.Payment `json:"payment"`
	Session *models.Session `json:"session"`
	Bill    *models.Bill    `json:"bill,omitempty"`
}

// ConfirmPayment marks a payment PAID and recomputes the session's paid
// amount from all PAID payments. When the session becomes fully paid for the
// first time, the bill is generated and the session completed in the same
// transaction. Confirming an already PAID payment returns the current state
// without side effects. A pending payment of a session that is no longer
// ACTIVE is rejected and stays PENDING.
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentID, transactionID string) (*Settlement, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmPayment")
	var err error
	defer func() { util.EndSpan(span, err) }()

	var (
		result      Settlement
		replayed    bool
		billCreated bool
		table       *models.Table
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		payment, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return lookup(err, apperr.ErrPaymentNotFound)
		}
		result.Payment = payment

		switch payment.Status {
		case models.PaymentStatusPaid:
			replayed = true
			result.Session, err = tx.GetSession(ctx, payment.SessionID)
			if err != nil {
				return err
			}
			if bill, err := tx.GetBillBySession(ctx, payment.SessionID); err == nil {
				result.Bill = bill
			}
			return nil
		case models.PaymentStatusPending:
		default:
			return apperr.Wrap(apperr.ErrPaymentNotPending, "payment %s is %s", payment.ID, payment.Status)
		}

		session, err := tx.LockSession(ctx, payment.SessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		result.Session = session
		if session.Status != models.SessionStatusActive {
			return apperr.Wrap(apperr.ErrSessionNotActive,
				"session %s is %s, payment %s cannot be applied", session.ID, session.Status, payment.ID)
		}

		now := s.now().UTC()
		payment.Status = models.PaymentStatusPaid
		payment.ProcessedAt = &now
		if tid := strings.TrimSpace(transactionID); tid != "" {
			payment.TransactionID = &tid
		}
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		paid, err := tx.SumPaidPayments(ctx, session.ID)
		if err != nil {
			return err
		}
		status := models.PaymentStatusPartial
		if session.TotalAmount.IsPositive() && paid.GreaterThanOrEqual(session.TotalAmount) {
			status = models.PaymentStatusPaid
		}
		if err := tx.UpdateSessionPayment(ctx, session.ID, paid, status); err != nil {
			return err
		}
		session.PaidAmount = paid
		session.PaymentStatus = status
		session.IsReadyForBilling = status == models.PaymentStatusPaid

		if status != models.PaymentStatusPaid {
			return nil
		}

		result.Bill, billCreated, err = s.settle(ctx, tx, session)
		if err != nil {
			return err
		}
		table, err = releaseTable(ctx, tx, session)
		return err
	})
	if err != nil {
		err = classify("confirm payment", err)
		return nil, err
	}

	if replayed {
		s.logger.Info("Payment already confirmed", zap.String("payment_id", paymentID))
		return &result, nil
	}

	util.PaymentsConfirmedTotal.Inc()
	s.logger.Info("Payment confirmed",
		zap.String("payment_id", result.Payment.ID),
		zap.String("session_id", result.Session.ID),
		zap.String("paid", result.Session.PaidAmount.String()),
		zap.String("payment_status", string(result.Session.PaymentStatus)))

	s.bus.Broadcast(models.RealtimePaymentStatusChanged, models.PaymentStatusChangedPayload{
		SessionID: result.Session.ID,
		PaymentID: result.Payment.ID,
		Status:    result.Session.PaymentStatus,
		Amount:    result.Payment.Amount,
	}, realtime.SessionRoom(result.Session.ID), realtime.RestaurantRoom(result.Session.RestaurantID))

	confirmed := &models.PaymentConfirmedEvent{
		BaseEvent: newEventBase(models.EventTypePaymentConfirmed),
		PaymentID: result.Payment.ID,
		SessionID: result.Session.ID,
		Amount:    result.Payment.Amount,
		Method:    result.Payment.Method,
	}
	if result.Payment.TransactionID != nil {
		confirmed.TransactionID = *result.Payment.TransactionID
	}
	if perr := s.events.PublishPaymentConfirmed(ctx, confirmed); perr != nil {
		s.logger.Error("Failed to publish PaymentConfirmed event", zap.Error(perr))
	}

	if billCreated {
		s.announceBill(ctx, result.Bill)
	}
	if table != nil {
		util.SessionsClosedTotal.WithLabelValues(string(models.SessionStatusCompleted)).Inc()
		announceTableFree(s.bus, table)
		publishSessionClosed(ctx, s.events, s.logger, result.Session)
	}

	return &result, nil
}

// FailPayment marks a pending payment FAILED. The session is untouched, so
// the diner can retry with a new payment. Failing an already FAILED payment
// is a no-op.
func (s *PaymentService) FailPayment(ctx context.Context, paymentID, reason string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.FailPayment")
	var err error
	defer func() { util.EndSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "declined by payment gateway"
	}

	var (
		payment  *models.Payment
		replayed bool
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		var err error
		payment, err = tx.LockPayment(ctx, paymentID)
		if err != nil {
			return lookup(err, apperr.ErrPaymentNotFound)
		}
		switch payment.Status {
		case models.PaymentStatusFailed:
			replayed = true
			return nil
		case models.PaymentStatusPending:
		default:
			return apperr.Wrap(apperr.ErrPaymentNotPending, "payment %s is %s", payment.ID, payment.Status)
		}

		now := s.now().UTC()
		payment.Status = models.PaymentStatusFailed
		payment.FailureReason = &reason
		payment.ProcessedAt = &now
		return tx.UpdatePayment(ctx, payment)
	})
	if err != nil {
		err = classify("fail payment", err)
		return nil, err
	}
	if replayed {
		return payment, nil
	}

	util.PaymentsFailedTotal.Inc()
	s.logger.Warn("Payment failed",
		zap.String("payment_id", payment.ID),
		zap.String("session_id", payment.SessionID),
		zap.String("reason", reason))

	s.bus.Broadcast(models.RealtimePaymentStatusChanged, models.PaymentStatusChangedPayload{
		SessionID: payment.SessionID,
		PaymentID: payment.ID,
		Status:    payment.Status,
		Amount:    payment.Amount,
	}, realtime.SessionRoom(payment.SessionID))

	event := &models.PaymentFailedEvent{
		BaseEvent: newEventBase(models.EventTypePaymentFailed),
		PaymentID: payment.ID,
		SessionID: payment.SessionID,
		Reason:    reason,
	}
	if perr := s.events.PublishPaymentFailed(ctx, event); perr != nil {
		s.logger.Error("Failed to publish PaymentFailed event", zap.Error(perr))
	}

	return payment, nil
}

// HandleGatewayCallback applies a gateway callback event
func (s *PaymentService) HandleGatewayCallback(ctx context.Context, event *models.GatewayCallbackEvent) error {
	switch event.Status {
	case models.GatewayStatusSuccess:
		_, err := s.ConfirmPayment(ctx, event.PaymentID, event.TransactionID)
		return err
	case models.GatewayStatusFailed:
		_, err := s.FailPayment(ctx, event.PaymentID, event.Reason)
		return err
	default:
		return apperr.Wrap(apperr.ErrInvalidInput, "unknown gateway status %q", event.Status)
	}
}

// ListPayments lists a session's payments in creation order
func (s *PaymentService) ListPayments(ctx context.Context, sessionID string) ([]models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ListPayments")
	defer span.End()

	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, lookup(err, apperr.ErrSessionNotFound)
	}
	payments, err := s.repo.ListPayments(ctx, sessionID, "")
	if err != nil {
		return nil, classify("list payments", err)
	}
	return payments, nil
}
