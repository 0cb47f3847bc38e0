package service

import (
	"context"
	"errors"
	"time"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transactor is the repository plus a transaction primitive. *store.Store
// implements it.
type Transactor interface {
	store.Repository
	RunInTx(ctx context.Context, fn func(store.Repository) error) error
}

// Broadcaster pushes an event to realtime rooms without blocking.
type Broadcaster interface {
	Broadcast(eventType string, data interface{}, rooms ...string)
}

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error
	PublishSessionClosed(ctx context.Context, event *models.SessionClosedEvent) error
}

// MenuCache stores serialized menus per restaurant.
type MenuCache interface {
	GetMenu(ctx context.Context, restaurantID string) ([]byte, bool, error)
	SetMenu(ctx context.Context, restaurantID string, data []byte, ttl time.Duration) error
	InvalidateMenu(ctx context.Context, restaurantID string) error
}

// Settings are the business defaults shared by the services.
type Settings struct {
	DefaultTaxRate            decimal.Decimal
	DefaultServiceChargeRate  decimal.Decimal
	MinPreparationMinutes     int
	DefaultPreparationMinutes int
	BillNumberAttempts        int
	MenuCacheTTL              time.Duration
}

// DefaultSettings returns 18% tax, 5% service charge, a 10 minute
// preparation floor and 3 bill number attempts.
func DefaultSettings() Settings {
	return Settings{
		DefaultTaxRate:            decimal.NewFromInt(18),
		DefaultServiceChargeRate:  decimal.NewFromInt(5),
		MinPreparationMinutes:     10,
		DefaultPreparationMinutes: 15,
		BillNumberAttempts:        3,
		MenuCacheTTL:              30 * time.Second,
	}
}

// lookup maps a missing row to notFound and anything else to an upstream failure.
func lookup(err error, notFound *apperr.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return classify("store", err)
}

// classify passes taxonomy errors through and marks everything else as an
// upstream failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		apperr.NotFound, apperr.InvalidState, apperr.Validation,
		apperr.ConcurrencyConflict, apperr.UpstreamFailure,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return apperr.Upstream(op, err)
}

func requireActive(session *models.Session) error {
	if session.Status != models.SessionStatusActive {
		return apperr.Wrap(apperr.ErrSessionNotActive, "session %s is %s", session.ID, session.Status)
	}
	return nil
}

func newEventBase(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   newID(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func newID() string {
	return uuid.New().String()
}
