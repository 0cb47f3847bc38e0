package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Realtime room event names, delivered to subscribed devices.
const (
	RealtimeCartUpdate           = "cart_update"
	RealtimeOrderPlaced          = "order_placed"
	RealtimeOrderUpdate          = "order_update"
	RealtimeOrderStatusChanged   = "order_status_changed"
	RealtimePaymentStatusChanged = "payment_status_changed"
	RealtimeTableStatusChanged   = "table_status_changed"
)

// RoomEvent is the envelope pushed to a realtime room.
type RoomEvent struct {
	Room      string      `json:"room"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type CartUpdatePayload struct {
	SessionID string     `json:"sessionId"`
	Items     []CartItem `json:"items"`
}

type OrderUpdatePayload struct {
	OrderID       string      `json:"orderId"`
	Status        OrderStatus `json:"status"`
	EstimatedTime int         `json:"estimatedTime"`
}

type OrderStatusChangedPayload struct {
	OrderID       string      `json:"orderId"`
	SessionID     string      `json:"sessionId"`
	Status        OrderStatus `json:"status"`
	TableNumber   string      `json:"tableNumber"`
	EstimatedTime int         `json:"estimatedTime"`
}

type OrderPlacedPayload struct {
	OrderID       string          `json:"orderId"`
	SessionID     string          `json:"sessionId"`
	TableNumber   string          `json:"tableNumber"`
	Status        OrderStatus     `json:"status"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	EstimatedTime int             `json:"estimatedTime"`
	ItemCount     int             `json:"itemCount"`
}

type PaymentStatusChangedPayload struct {
	SessionID string          `json:"sessionId"`
	PaymentID string          `json:"paymentId"`
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

type TableStatusChangedPayload struct {
	TableID          string `json:"tableId"`
	TableNumber      string `json:"tableNumber"`
	Status           string `json:"status"`
	HasActiveSession bool   `json:"hasActiveSession"`
}

// Domain event types published to Kafka.
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed      = "PAYMENT_FAILED"
	EventTypeBillGenerated      = "BILL_GENERATED"
	EventTypeSessionClosed      = "SESSION_CLOSED"
	EventTypeGatewayCallback    = "GATEWAY_CALLBACK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderPlacedEvent struct {
	BaseEvent
	OrderID      string          `json:"order_id"`
	SessionID    string          `json:"session_id"`
	RestaurantID string          `json:"restaurant_id"`
	TableID      string          `json:"table_id"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Items        []OrderItemData `json:"items"`
}

type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID      string      `json:"order_id"`
	RestaurantID string      `json:"restaurant_id"`
	From         OrderStatus `json:"from"`
	To           OrderStatus `json:"to"`
	Reason       string      `json:"reason,omitempty"`
}

type PaymentConfirmedEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	SessionID     string          `json:"session_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type BillGeneratedEvent struct {
	BaseEvent
	BillID       string          `json:"bill_id"`
	BillNumber   string          `json:"bill_number"`
	SessionID    string          `json:"session_id"`
	RestaurantID string          `json:"restaurant_id"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
}

type SessionClosedEvent struct {
	BaseEvent
	SessionID    string        `json:"session_id"`
	TableID      string        `json:"table_id"`
	RestaurantID string        `json:"restaurant_id"`
	Status       SessionStatus `json:"status"`
}

// GatewayCallbackEvent is produced by the payment gateway adapter.
// Status is SUCCESS or FAILED.
type GatewayCallbackEvent struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

const (
	GatewayStatusSuccess = "SUCCESS"
	GatewayStatusFailed  = "FAILED"
)

// OrderItemData represents item data in events
type OrderItemData struct {
	MenuItemID string          `json:"menu_item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}
