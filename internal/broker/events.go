package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"dinein-service/internal/models"
	"dinein-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes domain events to the events topic. Order events
// are keyed by order, everything else by session, so consumers see each
// aggregate's events in order.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

func (ep *EventPublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, "session-"+event.SessionID, event.EventType, event)
}

func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, "session-"+event.SessionID, event.EventType, event)
}

func (ep *EventPublisher) PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error {
	return ep.producer.PublishEvent(ctx, "session-"+event.SessionID, event.EventType, event)
}

func (ep *EventPublisher) PublishSessionClosed(ctx context.Context, event *models.SessionClosedEvent) error {
	return ep.producer.PublishEvent(ctx, "session-"+event.SessionID, event.EventType, event)
}

// EventHandler routes incoming payment gateway callbacks
type EventHandler struct {
	onGatewayCallback func(context.Context, *models.GatewayCallbackEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("kafka")}
}

// OnGatewayCallback registers a handler for GATEWAY_CALLBACK events
func (eh *EventHandler) OnGatewayCallback(handler func(context.Context, *models.GatewayCallbackEvent) error) {
	eh.onGatewayCallback = handler
}

// HandleMessage routes messages to appropriate handlers. Unknown event
// types are skipped so they get committed.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeGatewayCallback:
		if eh.onGatewayCallback != nil {
			var event models.GatewayCallbackEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal GatewayCallback event: %w", err)
			}
			return eh.onGatewayCallback(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
