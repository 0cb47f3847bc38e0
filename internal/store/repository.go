package store

import (
	"context"
	"time"

	"dinein-service/internal/models"

	"github.com/shopspring/decimal"
)

// Repository is the data access surface used by the services. *Queries
// implements it both outside and inside a transaction. Lock* methods take a
// row lock that is only meaningful inside RunInTx.
type Repository interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	FindTableForScan(ctx context.Context, tableID, restaurantID, qrCode string) (*models.Table, error)
	GetTable(ctx context.Context, id string) (*models.Table, error)
	LockTable(ctx context.Context, id string) (*models.Table, error)
	SetTableSession(ctx context.Context, tableID string, sessionID *string) error

	GetSession(ctx context.Context, id string) (*models.Session, error)
	LockSession(ctx context.Context, id string) (*models.Session, error)
	FindActiveSession(ctx context.Context, tableID string) (*models.Session, error)
	CreateSession(ctx context.Context, session *models.Session) error
	AddSessionTotal(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)
	UpdateSessionPayment(ctx context.Context, id string, paid decimal.Decimal, status models.PaymentStatus) error
	CloseSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time, reason *string) error
	SetSessionCoupon(ctx context.Context, id, couponID string) error

	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	GetMenuItemsByIDs(ctx context.Context, ids []string) ([]models.MenuItem, error)
	ListCategories(ctx context.Context, restaurantID string) ([]models.Category, error)
	ListAvailableMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error)
	ListQuickAddItems(ctx context.Context, restaurantID string, limit int) ([]models.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, id string, available bool) (*models.MenuItem, error)

	ListCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error)
	GetCartItem(ctx context.Context, id string) (*models.CartItem, error)
	FindCartItemByMergeKey(ctx context.Context, sessionID, mergeKey string) (*models.CartItem, error)
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItem(ctx context.Context, item *models.CartItem) error
	DeleteCartItem(ctx context.Context, id string) (bool, error)
	ClearCart(ctx context.Context, sessionID string) (int64, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	LockOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	LockPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	SumPaidPayments(ctx context.Context, sessionID string) (decimal.Decimal, error)
	SumOpenPayments(ctx context.Context, sessionID string) (decimal.Decimal, error)
	ListPayments(ctx context.Context, sessionID string, status models.PaymentStatus) ([]models.Payment, error)

	GetBillBySession(ctx context.Context, sessionID string) (*models.Bill, error)
	InsertBill(ctx context.Context, bill *models.Bill) (bool, error)

	GetCoupon(ctx context.Context, id string) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, restaurantID, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id string) (bool, error)

	CreateFeedback(ctx context.Context, feedback *models.Feedback) error

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// OrderFilter narrows ListOrders. Empty fields match everything.
type OrderFilter struct {
	RestaurantID string
	SessionID    string
	Status       models.OrderStatus
	Limit        int
}

var _ Repository = (*Queries)(nil)
