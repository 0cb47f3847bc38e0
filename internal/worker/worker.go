// Package worker runs the background consumers of the service.
package worker

import (
	"context"
	"errors"

	"dinein-service/internal/apperr"
	"dinein-service/internal/broker"
	"dinein-service/internal/models"
	"dinein-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource delivers messages to a handler until ctx is cancelled.
// *broker.Consumer implements it.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// CallbackHandler settles a payment from a gateway callback.
type CallbackHandler interface {
	HandleGatewayCallback(ctx context.Context, event *models.GatewayCallbackEvent) error
}

// EventLog remembers which events were already applied.
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// PaymentCallbackWorker applies payment gateway callbacks from Kafka
type PaymentCallbackWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	payments     CallbackHandler
	processed    EventLog
	logger       *zap.Logger
}

// NewPaymentCallbackWorker creates a new payment callback worker
func NewPaymentCallbackWorker(consumer MessageSource, payments CallbackHandler, processed EventLog) *PaymentCallbackWorker {
	w := &PaymentCallbackWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		payments:     payments,
		processed:    processed,
		logger:       util.ComponentLogger("payment-callback-worker"),
	}
	w.eventHandler.OnGatewayCallback(w.handleCallback)
	return w
}

// Start consumes until ctx is cancelled
func (w *PaymentCallbackWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment callback worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *PaymentCallbackWorker) Stop() error {
	w.logger.Info("Stopping payment callback worker")
	return w.consumer.Close()
}

// handleCallback applies a callback at most once per event id. Callbacks
// that can never succeed (unknown payment, payment no longer pending) are
// logged and committed; store failures are returned so the message is
// redelivered.
func (w *PaymentCallbackWorker) handleCallback(ctx context.Context, event *models.GatewayCallbackEvent) error {
	log := w.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("payment_id", event.PaymentID),
		zap.String("status", event.Status))

	if event.EventID != "" {
		done, err := w.processed.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if done {
			log.Info("Callback already processed, skipping")
			return nil
		}
	}

	if err := w.payments.HandleGatewayCallback(ctx, event); err != nil {
		if !permanent(err) {
			log.Error("Failed to apply payment callback", zap.Error(err))
			return err
		}
		log.Warn("Dropping payment callback", zap.String("code", apperr.CodeOf(err)), zap.Error(err))
	} else {
		log.Info("Payment callback applied")
	}

	if event.EventID == "" {
		return nil
	}
	return w.processed.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func permanent(err error) bool {
	return errors.Is(err, apperr.NotFound) ||
		errors.Is(err, apperr.InvalidState) ||
		errors.Is(err, apperr.Validation)
}
