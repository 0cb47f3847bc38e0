package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/pricing"
	"dinein-service/internal/realtime"
	"dinein-service/internal/store"
	"dinein-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionService owns the table to session relationship
type SessionService struct {
	repo   Transactor
	bus    Broadcaster
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(repo Transactor, bus Broadcaster, events EventPublisher) *SessionService {
	return &SessionService{
		repo:   repo,
		bus:    bus,
		events: events,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// ScanRequest is the payload printed in a table's QR code
type ScanRequest struct {
	QRCode       string `json:"qrCode" binding:"required"`
	TableID      string `json:"tableId" binding:"required"`
	RestaurantID string `json:"restaurantId" binding:"required"`
}

// ScanResult is everything a device needs to join or resume a session
type ScanResult struct {
	SessionID      string            `json:"sessionId"`
	TableID        string            `json:"tableId"`
	TableNumber    string            `json:"tableNumber"`
	RestaurantID   string            `json:"restaurantId"`
	RestaurantName string            `json:"restaurantName"`
	IsNewSession   bool              `json:"isNewSession"`
	CartItems      []models.CartItem `json:"cartItems"`
}

// ValidateScan resolves a QR scan to the table's active session, creating
// one if needed. Rescanning while a session is active returns the same
// session.
func (s *SessionService) ValidateScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.ValidateScan")
	var err error
	defer func() { util.EndSpan(span, err) }()

	table, err := s.repo.FindTableForScan(ctx, req.TableID, req.RestaurantID, req.QRCode)
	if err != nil {
		err = lookup(err, apperr.ErrTableNotFound)
		return nil, err
	}

	restaurant, err := s.repo.GetRestaurant(ctx, table.RestaurantID)
	if err != nil {
		err = lookup(err, apperr.ErrTableNotFound)
		return nil, err
	}
	if !restaurant.IsActive {
		err = apperr.ErrRestaurantClosed
		return nil, err
	}

	session, created, err := s.joinOrStart(ctx, table)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.ListCartItems(ctx, session.ID)
	if err != nil {
		err = classify("list cart", err)
		return nil, err
	}

	if created {
		util.SessionsCreatedTotal.Inc()
		s.logger.Info("Session started",
			zap.String("session_id", session.ID),
			zap.String("table_id", table.ID))
	} else {
		util.SessionsReusedTotal.Inc()
	}

	return &ScanResult{
		SessionID:      session.ID,
		TableID:        table.ID,
		TableNumber:    table.Number,
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
		IsNewSession:   created,
		CartItems:      cart,
	}, nil
}

// joinOrStart returns the table's active session or creates one. The table
// row lock serializes concurrent scans; the partial unique index on active
// sessions backs it up, and losing that race reuses the winner.
func (s *SessionService) joinOrStart(ctx context.Context, table *models.Table) (*models.Session, bool, error) {
	var (
		session *models.Session
		created bool
	)

	err := s.repo.RunInTx(ctx, func(tx store.Repository) error {
		if _, err := tx.LockTable(ctx, table.ID); err != nil {
			return lookup(err, apperr.ErrTableNotFound)
		}

		existing, err := tx.FindActiveSession(ctx, table.ID)
		switch {
		case err == nil:
			session = existing
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		session = &models.Session{
			ID:            newID(),
			TableID:       table.ID,
			RestaurantID:  table.RestaurantID,
			Status:        models.SessionStatusActive,
			StartedAt:     s.now().UTC(),
			TotalAmount:   decimal.Zero,
			PaidAmount:    decimal.Zero,
			PaymentStatus: models.PaymentStatusPending,
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}
		created = true
		return tx.SetTableSession(ctx, table.ID, &session.ID)
	})

	if errors.Is(err, store.ErrConflict) {
		util.SessionConflictsTotal.Inc()
		s.logger.Info("Concurrent session creation, reusing winner", zap.String("table_id", table.ID))
		winner, ferr := s.repo.FindActiveSession(ctx, table.ID)
		if ferr != nil {
			return nil, false, classify("find active session", ferr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, classify("start session", err)
	}
	return session, created, nil
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.GetSession")
	defer span.End()

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, lookup(err, apperr.ErrSessionNotFound)
	}
	return session, nil
}

// CouponResult previews the discount of a freshly applied coupon
type CouponResult struct {
	Session  *models.Session `json:"session"`
	Coupon   *models.Coupon  `json:"coupon"`
	Discount decimal.Decimal `json:"discount"`
}

// ApplyCoupon validates a coupon code against the session's current total
// and records it. The discount itself is taken when the bill is generated.
func (s *SessionService) ApplyCoupon(ctx context.Context, sessionID, code string) (*CouponResult, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.ApplyCoupon")
	var err error
	defer func() { util.EndSpan(span, err) }()

	code = strings.TrimSpace(code)
	if code == "" {
		err = apperr.Wrap(apperr.ErrInvalidInput, "coupon code is required")
		return nil, err
	}

	var result CouponResult
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}

		coupon, err := tx.GetCouponByCode(ctx, session.RestaurantID, code)
		if err != nil {
			return lookup(err, apperr.ErrCouponNotFound)
		}
		if err := pricing.ValidateCoupon(coupon, session.TotalAmount, s.now()); err != nil {
			return apperr.Wrap(apperr.ErrCouponInvalid, "%s", err.Error())
		}

		if err := tx.SetSessionCoupon(ctx, session.ID, coupon.ID); err != nil {
			return err
		}
		session.CouponID = &coupon.ID

		result = CouponResult{
			Session:  session,
			Coupon:   coupon,
			Discount: pricing.CouponDiscount(coupon, session.TotalAmount),
		}
		return nil
	})
	if err != nil {
		err = classify("apply coupon", err)
		return nil, err
	}

	s.logger.Info("Coupon applied",
		zap.String("session_id", sessionID),
		zap.String("coupon", result.Coupon.Code))
	return &result, nil
}

// CancelSession abandons an active session and frees its table
func (s *SessionService) CancelSession(ctx context.Context, sessionID, reason string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.CancelSession")
	var err error
	defer func() { util.EndSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		err = apperr.ErrReasonRequired
		return nil, err
	}

	var (
		session *models.Session
		table   *models.Table
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		var err error
		session, err = tx.LockSession(ctx, sessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}

		endedAt := s.now().UTC()
		if err := tx.CloseSession(ctx, session.ID, models.SessionStatusCancelled, endedAt, &reason); err != nil {
			return err
		}
		session.Status = models.SessionStatusCancelled
		session.EndedAt = &endedAt
		session.CancellationReason = &reason

		table, err = releaseTable(ctx, tx, session)
		return err
	})
	if err != nil {
		err = classify("cancel session", err)
		return nil, err
	}

	util.SessionsClosedTotal.WithLabelValues(string(models.SessionStatusCancelled)).Inc()
	s.logger.Info("Session cancelled", zap.String("session_id", sessionID), zap.String("reason", reason))

	announceTableFree(s.bus, table)
	publishSessionClosed(ctx, s.events, s.logger, session)
	return session, nil
}

// releaseTable clears the table's current session pointer if it still
// points at session. Callers hold the session row lock.
func releaseTable(ctx context.Context, tx store.Repository, session *models.Session) (*models.Table, error) {
	table, err := tx.LockTable(ctx, session.TableID)
	if err != nil {
		return nil, lookup(err, apperr.ErrTableNotFound)
	}
	if table.CurrentSessionID != nil && *table.CurrentSessionID == session.ID {
		if err := tx.SetTableSession(ctx, table.ID, nil); err != nil {
			return nil, err
		}
		table.CurrentSessionID = nil
	}
	return table, nil
}

func announceTableFree(bus Broadcaster, table *models.Table) {
	bus.Broadcast(models.RealtimeTableStatusChanged, models.TableStatusChangedPayload{
		TableID:          table.ID,
		TableNumber:      table.Number,
		Status:           "available",
		HasActiveSession: table.CurrentSessionID != nil,
	}, realtime.TableRoom(table.ID), realtime.RestaurantRoom(table.RestaurantID))
}

func publishSessionClosed(ctx context.Context, events EventPublisher, logger *zap.Logger, session *models.Session) {
	event := &models.SessionClosedEvent{
		BaseEvent:    newEventBase(models.EventTypeSessionClosed),
		SessionID:    session.ID,
		TableID:      session.TableID,
		RestaurantID: session.RestaurantID,
		Status:       session.Status,
	}
	if err := events.PublishSessionClosed(ctx, event); err != nil {
		logger.Error("Failed to publish SessionClosed event",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}
