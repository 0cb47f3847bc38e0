package api

import (
	"context"

	"dinein-service/internal/models"
	"dinein-service/internal/service"
	"dinein-service/internal/store"

	"github.com/stretchr/testify/mock"
)

type mockSessions struct{ mock.Mock }

func (m *mockSessions) ValidateScan(ctx context.Context, req service.ScanRequest) (*service.ScanResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.ScanResult)
	return res, args.Error(1)
}

func (m *mockSessions) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *mockSessions) ApplyCoupon(ctx context.Context, sessionID, code string) (*service.CouponResult, error) {
	args := m.Called(ctx, sessionID, code)
	res, _ := args.Get(0).(*service.CouponResult)
	return res, args.Error(1)
}

func (m *mockSessions) CancelSession(ctx context.Context, sessionID, reason string) (*models.Session, error) {
	args := m.Called(ctx, sessionID, reason)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

type mockCarts struct{ mock.Mock }

func (m *mockCarts) AddItem(ctx context.Context, req service.AddItemRequest) (*models.CartItem, error) {
	args := m.Called(ctx, req)
	item, _ := args.Get(0).(*models.CartItem)
	return item, args.Error(1)
}

func (m *mockCarts) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*models.CartItem, error) {
	args := m.Called(ctx, itemID, quantity)
	item, _ := args.Get(0).(*models.CartItem)
	return item, args.Error(1)
}

func (m *mockCarts) RemoveItem(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

func (m *mockCarts) Clear(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockCarts) GetCart(ctx context.Context, sessionID string) (*service.CartView, error) {
	args := m.Called(ctx, sessionID)
	v, _ := args.Get(0).(*service.CartView)
	return v, args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) UpdateStatus(ctx context.Context, orderID string, req service.UpdateStatusRequest) (*models.Order, error) {
	args := m.Called(ctx, orderID, req)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	args := m.Called(ctx, filter)
	o, _ := args.Get(0).([]models.Order)
	return o, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) InitiatePayment(ctx context.Context, req service.InitiatePaymentRequest) (*models.Payment, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *mockPayments) ConfirmPayment(ctx context.Context, paymentID, transactionID string) (*service.Settlement, error) {
	args := m.Called(ctx, paymentID, transactionID)
	s, _ := args.Get(0).(*service.Settlement)
	return s, args.Error(1)
}

func (m *mockPayments) FailPayment(ctx context.Context, paymentID, reason string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, reason)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *mockPayments) ListPayments(ctx context.Context, sessionID string) ([]models.Payment, error) {
	args := m.Called(ctx, sessionID)
	p, _ := args.Get(0).([]models.Payment)
	return p, args.Error(1)
}

func (m *mockPayments) GenerateBill(ctx context.Context, sessionID string) (*models.Bill, error) {
	args := m.Called(ctx, sessionID)
	b, _ := args.Get(0).(*models.Bill)
	return b, args.Error(1)
}

func (m *mockPayments) GetBill(ctx context.Context, sessionID string) (*models.Bill, error) {
	args := m.Called(ctx, sessionID)
	b, _ := args.Get(0).(*models.Bill)
	return b, args.Error(1)
}
