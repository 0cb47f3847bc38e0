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

	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	repo     Transactor
	bus      Broadcaster
	events   EventPublisher
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(repo Transactor, bus Broadcaster, events EventPublisher, settings Settings) *OrderService {
	return &OrderService{
		repo:     repo,
		bus:      bus,
		events:   events,
		settings: settings,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// PlaceOrderRequest represents a request to place an order. Either Items
// is non-empty or FromCart is set, in which case the session's cart is
// snapshotted inside the placement transaction.
type PlaceOrderRequest struct {
	SessionID           string          `json:"sessionId" binding:"required"`
	Items               []ItemSelection `json:"items,omitempty" binding:"dive"`
	FromCart            bool            `json:"fromCart,omitempty"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	IdempotencyKey      string          `json:"idempotencyKey,omitempty"`
}

// PlaceOrder turns the requested items into an immutable order. Creating the
// order, adding its total to the session and clearing the cart happen in one
// transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	var err error
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	if req.IdempotencyKey != "" {
		existing, lerr := s.repo.GetOrderByIdempotencyKey(ctx, req.SessionID, req.IdempotencyKey)
		if lerr == nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", existing.ID))
			return existing, nil
		}
		if !errors.Is(lerr, store.ErrNotFound) {
			err = classify("check idempotency", lerr)
			return nil, err
		}
	}

	if !req.FromCart && len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty").Inc()
		err = apperr.ErrEmptyOrder
		return nil, err
	}

	var (
		order       *models.Order
		tableNumber string
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		session, err := tx.LockSession(ctx, req.SessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}

		selections := req.Items
		if req.FromCart {
			cart, err := tx.ListCartItems(ctx, session.ID)
			if err != nil {
				return err
			}
			selections = make([]ItemSelection, len(cart))
			for i, ci := range cart {
				selections[i] = selectionFromCart(ci)
			}
		}
		if len(selections) == 0 {
			return apperr.ErrEmptyOrder
		}

		order, err = s.buildOrder(ctx, tx, session, selections)
		if err != nil {
			return err
		}
		order.SpecialInstructions = strings.TrimSpace(req.SpecialInstructions)
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}

		table, err := tx.GetTable(ctx, session.TableID)
		if err != nil {
			return lookup(err, apperr.ErrTableNotFound)
		}
		tableNumber = table.Number

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if _, err := tx.AddSessionTotal(ctx, session.ID, order.TotalAmount); err != nil {
			return err
		}
		_, err = tx.ClearCart(ctx, session.ID)
		return err
	})

	if errors.Is(err, store.ErrConflict) && req.IdempotencyKey != "" {
		// Lost a race with a retry carrying the same key.
		existing, lerr := s.repo.GetOrderByIdempotencyKey(ctx, req.SessionID, req.IdempotencyKey)
		if lerr == nil {
			err = nil
			return existing, nil
		}
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		err = classify("place order", err)
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("session_id", order.SessionID),
		zap.String("total", order.TotalAmount.String()))

	s.announcePlaced(ctx, order, tableNumber)
	return order, nil
}

// buildOrder prices every line from the current catalog.
func (s *OrderService) buildOrder(ctx context.Context, tx store.Repository, session *models.Session, selections []ItemSelection) (*models.Order, error) {
	ids := make([]string, 0, len(selections))
	seen := make(map[string]bool, len(selections))
	for _, sel := range selections {
		if sel.Quantity <= 0 {
			return nil, apperr.Wrap(apperr.ErrInvalidInput, "quantity must be positive")
		}
		if !seen[sel.MenuItemID] {
			seen[sel.MenuItemID] = true
			ids = append(ids, sel.MenuItemID)
		}
	}

	menuItems, err := tx.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]*models.MenuItem, len(menuItems))
	for i := range menuItems {
		catalog[menuItems[i].ID] = &menuItems[i]
	}

	order := &models.Order{
		ID:           newID(),
		SessionID:    session.ID,
		RestaurantID: session.RestaurantID,
		TableID:      session.TableID,
		Status:       models.OrderStatusPlaced,
		PlacedAt:     s.now().UTC(),
		Items:        make([]models.OrderItem, 0, len(selections)),
	}

	lines := make([]pricing.Line, 0, len(selections))
	prep := make([]pricing.PrepLine, 0, len(selections))
	for _, sel := range selections {
		menuItem, ok := catalog[sel.MenuItemID]
		if !ok {
			return nil, apperr.Wrap(apperr.ErrMenuItemNotFound, "%s", sel.MenuItemID)
		}
		if err := checkOrderable(menuItem, session.RestaurantID); err != nil {
			return nil, err
		}
		resolved, err := resolveSelection(menuItem, sel)
		if err != nil {
			return nil, err
		}

		order.Items = append(order.Items, models.OrderItem{
			ID:                  newID(),
			MenuItemID:          menuItem.ID,
			Name:                menuItem.Name,
			Quantity:            sel.Quantity,
			SelectedVariant:     resolved.variant,
			SelectedAddOns:      resolved.addOns,
			SpecialInstructions: strings.TrimSpace(sel.SpecialInstructions),
			UnitPrice:           resolved.unitPrice,
		})
		lines = append(lines, pricing.Line{UnitPrice: resolved.unitPrice, Quantity: sel.Quantity})

		minutes := menuItem.PreparationTime
		if minutes <= 0 {
			minutes = s.settings.DefaultPreparationMinutes
		}
		prep = append(prep, pricing.PrepLine{Minutes: minutes, Quantity: sel.Quantity})
	}

	order.TotalAmount = pricing.OrderTotal(lines)
	order.EstimatedPreparationTime = pricing.EstimatePreparation(prep, s.settings.MinPreparationMinutes)
	return order, nil
}

func (s *OrderService) announcePlaced(ctx context.Context, order *models.Order, tableNumber string) {
	itemCount := 0
	eventItems := make([]models.OrderItemData, len(order.Items))
	for i, it := range order.Items {
		itemCount += it.Quantity
		eventItems[i] = models.OrderItemData{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		}
	}

	s.bus.Broadcast(models.RealtimeOrderPlaced, models.OrderPlacedPayload{
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		TableNumber:   tableNumber,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		EstimatedTime: order.EstimatedPreparationTime,
		ItemCount:     itemCount,
	}, realtime.SessionRoom(order.SessionID), realtime.RestaurantRoom(order.RestaurantID))

	s.bus.Broadcast(models.RealtimeCartUpdate, models.CartUpdatePayload{
		SessionID: order.SessionID,
		Items:     []models.CartItem{},
	}, realtime.SessionRoom(order.SessionID))

	event := &models.OrderPlacedEvent{
		BaseEvent:    newEventBase(models.EventTypeOrderPlaced),
		OrderID:      order.ID,
		SessionID:    order.SessionID,
		RestaurantID: order.RestaurantID,
		TableID:      order.TableID,
		TotalAmount:  order.TotalAmount,
		Items:        eventItems,
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// UpdateStatusRequest moves an order through the kitchen state machine
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason,omitempty"`
}

// UpdateStatus applies one legal transition. Concurrent updates on the same
// order are serialized by its row lock; the loser sees the new status and
// fails with INVALID_TRANSITION.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, req UpdateStatusRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	var err error
	defer func() { util.EndSpan(span, err) }()

	next := req.Status
	if !next.Valid() {
		err = apperr.Wrap(apperr.ErrInvalidInput, "unknown order status %q", next)
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if next == models.OrderStatusCancelled && reason == "" {
		err = apperr.ErrReasonRequired
		return nil, err
	}

	var (
		order       *models.Order
		previous    models.OrderStatus
		tableNumber string
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		locked, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return lookup(err, apperr.ErrOrderNotFound)
		}
		previous = locked.Status
		if !previous.CanTransitionTo(next) {
			return apperr.Wrap(apperr.ErrInvalidTransition, "%s -> %s", previous, next)
		}

		stamp(locked, next, reason, s.now().UTC())
		if err := tx.UpdateOrderStatus(ctx, locked); err != nil {
			return err
		}

		if table, err := tx.GetTable(ctx, locked.TableID); err == nil {
			tableNumber = table.Number
		}

		order, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		err = classify("update order status", err)
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))

	s.bus.Broadcast(models.RealtimeOrderStatusChanged, models.OrderStatusChangedPayload{
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		Status:        order.Status,
		TableNumber:   tableNumber,
		EstimatedTime: order.EstimatedPreparationTime,
	}, realtime.SessionRoom(order.SessionID), realtime.RestaurantRoom(order.RestaurantID))

	s.bus.Broadcast(models.RealtimeOrderUpdate, models.OrderUpdatePayload{
		OrderID:       order.ID,
		Status:        order.Status,
		EstimatedTime: order.EstimatedPreparationTime,
	}, realtime.SessionRoom(order.SessionID))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:    newEventBase(models.EventTypeOrderStatusChanged),
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		From:         previous,
		To:           next,
		Reason:       reason,
	}
	if perr := s.events.PublishOrderStatusChanged(ctx, event); perr != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.String("order_id", order.ID), zap.Error(perr))
	}

	return order, nil
}

// stamp records the timestamp of the state being entered. Each timestamp is
// written once, on first entry.
func stamp(order *models.Order, next models.OrderStatus, reason string, at time.Time) {
	order.Status = next
	switch next {
	case models.OrderStatusReady:
		if order.PreparedAt == nil {
			order.PreparedAt = &at
		}
	case models.OrderStatusServed:
		if order.ServedAt == nil {
			order.ServedAt = &at
		}
	case models.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &at
			order.CancellationReason = &reason
		}
	}
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, lookup(err, apperr.ErrOrderNotFound)
	}
	return order, nil
}

// ListOrders lists orders newest first
func (s *OrderService) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "unknown order status %q", filter.Status)
	}

	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, classify("list orders", err)
	}
	return orders, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyOrder):
		return "empty"
	case errors.Is(err, apperr.ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, apperr.ErrMenuItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, apperr.NotFound):
		return "not_found"
	case errors.Is(err, apperr.Validation):
		return "invalid_items"
	default:
		return "db_error"
	}
}
