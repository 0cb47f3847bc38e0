package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant owns tables, menu and rates. Nil rates fall back to configured defaults.
type Restaurant struct {
	ID                string              `db:"id" json:"id"`
	Name              string              `db:"name" json:"name"`
	IsActive          bool                `db:"is_active" json:"isActive"`
	TaxRate           decimal.NullDecimal `db:"tax_rate" json:"taxRate"`
	ServiceChargeRate decimal.NullDecimal `db:"service_charge_rate" json:"serviceChargeRate"`
	CreatedAt         time.Time           `db:"created_at" json:"createdAt"`
}

// Table is a physical table with a secret QR token.
type Table struct {
	ID               string    `db:"id" json:"id"`
	RestaurantID     string    `db:"restaurant_id" json:"restaurantId"`
	Number           string    `db:"number" json:"number"`
	QRCode           string    `db:"qr_code" json:"-"`
	Capacity         int       `db:"capacity" json:"capacity"`
	IsActive         bool      `db:"is_active" json:"isActive"`
	CurrentSessionID *string   `db:"current_session_id" json:"currentSessionId"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Session is one dining visit at one table.
type Session struct {
	ID                 string          `db:"id" json:"id"`
	TableID            string          `db:"table_id" json:"tableId"`
	RestaurantID       string          `db:"restaurant_id" json:"restaurantId"`
	Status             SessionStatus   `db:"status" json:"status"`
	StartedAt          time.Time       `db:"started_at" json:"startedAt"`
	EndedAt            *time.Time      `db:"ended_at" json:"endedAt,omitempty"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"totalAmount"`
	PaidAmount         decimal.Decimal `db:"paid_amount" json:"paidAmount"`
	PaymentStatus      PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	IsReadyForBilling  bool            `db:"is_ready_for_billing" json:"isReadyForBilling"`
	CouponID           *string         `db:"coupon_id" json:"couponId,omitempty"`
	CancellationReason *string         `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

// Category groups menu items for browsing.
type Category struct {
	ID           string `db:"id" json:"id"`
	RestaurantID string `db:"restaurant_id" json:"restaurantId"`
	Name         string `db:"name" json:"name"`
	Description  string `db:"description" json:"description,omitempty"`
	SortOrder    int    `db:"sort_order" json:"sortOrder"`
	IsActive     bool   `db:"is_active" json:"isActive"`
}

// MenuItem is catalog data. Variant and add-on prices are authoritative here.
type MenuItem struct {
	ID              string          `db:"id" json:"id"`
	RestaurantID    string          `db:"restaurant_id" json:"restaurantId"`
	CategoryID      string          `db:"category_id" json:"categoryId"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description,omitempty"`
	Price           decimal.Decimal `db:"price" json:"price"`
	PreparationTime int             `db:"preparation_time" json:"preparationTime"`
	IsAvailable     bool            `db:"is_available" json:"isAvailable"`
	QuickAddOrder   int             `db:"quick_add_order" json:"quickAddOrder"`
	SortOrder       int             `db:"sort_order" json:"sortOrder"`
	Variants        Variants        `db:"variants" json:"variants"`
	AddOns          AddOns          `db:"add_ons" json:"addOns"`
}

// Variant returns the variant with the given id.
func (m *MenuItem) Variant(id string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// AddOn returns the add-on with the given id.
func (m *MenuItem) AddOn(id string) (AddOn, bool) {
	for _, a := range m.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOn{}, false
}

type Variant struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
}

type AddOn struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	MaxQuantity int             `json:"maxQuantity,omitempty"`
}

// SelectedVariant is the variant snapshot stored on cart and order rows.
type SelectedVariant struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
}

// SelectedAddOn is the add-on snapshot stored on cart and order rows.
type SelectedAddOn struct {
	AddOnID   string          `json:"addOnId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CartItem is a mutable pre-order line owned by a session.
type CartItem struct {
	ID                  string           `db:"id" json:"id"`
	SessionID           string           `db:"session_id" json:"sessionId"`
	MenuItemID          string           `db:"menu_item_id" json:"menuItemId"`
	Name                string           `db:"name" json:"name"`
	Quantity            int              `db:"quantity" json:"quantity"`
	SelectedVariant     *SelectedVariant `db:"selected_variant" json:"selectedVariant,omitempty"`
	SelectedAddOns      SelectedAddOns   `db:"selected_add_ons" json:"selectedAddOns"`
	SpecialInstructions string           `db:"special_instructions" json:"specialInstructions,omitempty"`
	UnitPrice           decimal.Decimal  `db:"unit_price" json:"unitPrice"`
	MergeKey            string           `db:"merge_key" json:"-"`
	CreatedAt           time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updatedAt"`
}

// Order is an immutable priced snapshot. Only status fields change after placement.
type Order struct {
	ID                       string          `db:"id" json:"id"`
	SessionID                string          `db:"session_id" json:"sessionId"`
	RestaurantID             string          `db:"restaurant_id" json:"restaurantId"`
	TableID                  string          `db:"table_id" json:"tableId"`
	Status                   OrderStatus     `db:"status" json:"status"`
	TotalAmount              decimal.Decimal `db:"total_amount" json:"totalAmount"`
	EstimatedPreparationTime int             `db:"estimated_preparation_time" json:"estimatedPreparationTime"`
	SpecialInstructions      string          `db:"special_instructions" json:"specialInstructions,omitempty"`
	IdempotencyKey           *string         `db:"idempotency_key" json:"-"`
	PlacedAt                 time.Time       `db:"placed_at" json:"placedAt"`
	PreparedAt               *time.Time      `db:"prepared_at" json:"preparedAt,omitempty"`
	ServedAt                 *time.Time      `db:"served_at" json:"servedAt,omitempty"`
	CancelledAt              *time.Time      `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancellationReason       *string         `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	Items                    []OrderItem     `db:"-" json:"items"`
}

// OrderItem snapshots a menu item at order time.
type OrderItem struct {
	ID                  string           `db:"id" json:"id"`
	OrderID             string           `db:"order_id" json:"orderId"`
	LineNo              int              `db:"line_no" json:"-"`
	MenuItemID          string           `db:"menu_item_id" json:"menuItemId"`
	Name                string           `db:"name" json:"name"`
	Quantity            int              `db:"quantity" json:"quantity"`
	SelectedVariant     *SelectedVariant `db:"selected_variant" json:"selectedVariant,omitempty"`
	SelectedAddOns      SelectedAddOns   `db:"selected_add_ons" json:"selectedAddOns"`
	SpecialInstructions string           `db:"special_instructions" json:"specialInstructions,omitempty"`
	UnitPrice           decimal.Decimal  `db:"unit_price" json:"unitPrice"`
}

// Payment is one settlement attempt against a session.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	SessionID     string          `db:"session_id" json:"sessionId"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        PaymentMethod   `db:"method" json:"method"`
	Status        PaymentStatus   `db:"status" json:"status"`
	TransactionID *string         `db:"transaction_id" json:"transactionId,omitempty"`
	FailureReason *string         `db:"failure_reason" json:"failureReason,omitempty"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Bill is the immutable financial summary of a completed session.
type Bill struct {
	ID             string           `db:"id" json:"id"`
	SessionID      string           `db:"session_id" json:"sessionId"`
	RestaurantID   string           `db:"restaurant_id" json:"restaurantId"`
	TableID        string           `db:"table_id" json:"tableId"`
	Items          BillItems        `db:"items" json:"items"`
	Subtotal       decimal.Decimal  `db:"subtotal" json:"subtotal"`
	TaxAmount      decimal.Decimal  `db:"tax_amount" json:"taxAmount"`
	ServiceCharge  decimal.Decimal  `db:"service_charge" json:"serviceCharge"`
	DiscountAmount decimal.Decimal  `db:"discount_amount" json:"discountAmount"`
	FinalAmount    decimal.Decimal  `db:"final_amount" json:"finalAmount"`
	PaymentMethods PaymentSummaries `db:"payment_methods" json:"paymentMethods"`
	BillNumber     string           `db:"bill_number" json:"billNumber"`
	GeneratedAt    time.Time        `db:"generated_at" json:"generatedAt"`
}

type BillItem struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Variant    string          `json:"variant,omitempty"`
	AddOns     []string        `json:"addOns,omitempty"`
}

type PaymentMethodSummary struct {
	Method PaymentMethod   `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Coupon is a restaurant-issued discount.
type Coupon struct {
	ID                string              `db:"id" json:"id"`
	RestaurantID      string              `db:"restaurant_id" json:"restaurantId"`
	Code              string              `db:"code" json:"code"`
	Type              CouponType          `db:"type" json:"type"`
	Value             decimal.Decimal     `db:"value" json:"value"`
	MinOrderAmount    decimal.NullDecimal `db:"min_order_amount" json:"minOrderAmount"`
	MaxDiscountAmount decimal.NullDecimal `db:"max_discount_amount" json:"maxDiscountAmount"`
	ValidFrom         time.Time           `db:"valid_from" json:"validFrom"`
	ValidUntil        time.Time           `db:"valid_until" json:"validUntil"`
	UsageLimit        *int                `db:"usage_limit" json:"usageLimit,omitempty"`
	UsedCount         int                 `db:"used_count" json:"usedCount"`
	IsActive          bool                `db:"is_active" json:"isActive"`
}

// Feedback is a diner's rating of a session.
type Feedback struct {
	ID           string             `db:"id" json:"id"`
	SessionID    string             `db:"session_id" json:"sessionId"`
	RestaurantID string             `db:"restaurant_id" json:"restaurantId"`
	Rating       int                `db:"rating" json:"rating"`
	Comments     string             `db:"comments" json:"comments,omitempty"`
	Categories   FeedbackCategories `db:"categories" json:"categories"`
	SubmittedAt  time.Time          `db:"submitted_at" json:"submittedAt"`
}

type FeedbackCategory struct {
	Category string `json:"category"`
	Rating   int    `json:"rating"`
	Comments string `json:"comments,omitempty"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
