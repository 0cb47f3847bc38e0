package service

import (
	"context"
	"errors"
	"strings"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/pricing"
	"dinein-service/internal/realtime"
	"dinein-service/internal/store"
	"dinein-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService maintains the shared cart of a session. Every mutation holds
// the session row lock, so concurrent devices are applied one at a time and
// each one broadcasts the full resulting cart.
type CartService struct {
	repo   Transactor
	bus    Broadcaster
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repo Transactor, bus Broadcaster) *CartService {
	return &CartService{
		repo:   repo,
		bus:    bus,
		logger: util.GetLogger(),
	}
}

// AddItemRequest adds a menu item to a session's cart
type AddItemRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	ItemSelection
}

// CartView is the priced content of a cart
type CartView struct {
	SessionID   string            `json:"sessionId"`
	Items       []models.CartItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	ItemCount   int               `json:"itemCount"`
}

// AddItem adds an item or, when an identical line exists, increases its
// quantity. The unit price is always recomputed from the catalog.
func (s *CartService) AddItem(ctx context.Context, req AddItemRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if req.Quantity <= 0 {
		err = apperr.Wrap(apperr.ErrInvalidInput, "quantity must be positive")
		return nil, err
	}
	req.SpecialInstructions = strings.TrimSpace(req.SpecialInstructions)

	var (
		line  *models.CartItem
		items []models.CartItem
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		session, err := tx.LockSession(ctx, req.SessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}

		menuItem, err := tx.GetMenuItem(ctx, req.MenuItemID)
		if err != nil {
			return lookup(err, apperr.ErrMenuItemNotFound)
		}
		if err := checkOrderable(menuItem, session.RestaurantID); err != nil {
			return err
		}

		resolved, err := resolveSelection(menuItem, req.ItemSelection)
		if err != nil {
			return err
		}

		key := mergeKey(req.ItemSelection)
		existing, err := tx.FindCartItemByMergeKey(ctx, session.ID, key)
		switch {
		case err == nil:
			existing.Quantity += req.Quantity
			existing.UnitPrice = resolved.unitPrice
			existing.SelectedVariant = resolved.variant
			existing.SelectedAddOns = resolved.addOns
			if err := tx.UpdateCartItem(ctx, existing); err != nil {
				return err
			}
			line = existing
		case errors.Is(err, store.ErrNotFound):
			line = &models.CartItem{
				ID:                  newID(),
				SessionID:           session.ID,
				MenuItemID:          menuItem.ID,
				Name:                menuItem.Name,
				Quantity:            req.Quantity,
				SelectedVariant:     resolved.variant,
				SelectedAddOns:      resolved.addOns,
				SpecialInstructions: req.SpecialInstructions,
				UnitPrice:           resolved.unitPrice,
				MergeKey:            key,
			}
			if err := tx.CreateCartItem(ctx, line); err != nil {
				return err
			}
		default:
			return err
		}

		items, err = tx.ListCartItems(ctx, session.ID)
		return err
	})
	if err != nil {
		err = classify("add cart item", err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.logger.Debug("Cart item added",
		zap.String("session_id", req.SessionID),
		zap.String("cart_item_id", line.ID),
		zap.Int("quantity", line.Quantity))

	s.broadcastCart(req.SessionID, items)
	return line, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line; removing an absent line is not an error and returns (nil, nil).
func (s *CartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	var err error
	defer func() { util.EndSpan(span, err) }()

	item, err := s.mutateLine(ctx, itemID, quantity)
	return item, err
}

// RemoveItem deletes a cart line. It is idempotent.
func (s *CartService) RemoveItem(ctx context.Context, itemID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	var err error
	defer func() { util.EndSpan(span, err) }()

	_, err = s.mutateLine(ctx, itemID, 0)
	return err
}

func (s *CartService) mutateLine(ctx context.Context, itemID string, quantity int) (*models.CartItem, error) {
	current, err := s.repo.GetCartItem(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) && quantity <= 0 {
		return nil, nil
	}
	if err != nil {
		return nil, lookup(err, apperr.ErrCartItemNotFound)
	}
	sessionID := current.SessionID

	var (
		line    *models.CartItem
		items   []models.CartItem
		changed bool
	)
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}

		if quantity <= 0 {
			changed, err = tx.DeleteCartItem(ctx, itemID)
			if err != nil {
				return err
			}
		} else {
			line, err = tx.GetCartItem(ctx, itemID)
			if err != nil {
				return lookup(err, apperr.ErrCartItemNotFound)
			}
			line.Quantity = quantity
			if err := tx.UpdateCartItem(ctx, line); err != nil {
				return err
			}
			changed = true
		}

		items, err = tx.ListCartItems(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, classify("update cart item", err)
	}

	if changed {
		op := "update"
		if quantity <= 0 {
			op = "remove"
		}
		util.CartMutationsTotal.WithLabelValues(op).Inc()
		s.broadcastCart(sessionID, items)
	}
	return line, nil
}

// Clear empties a session's cart
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	var err error
	defer func() { util.EndSpan(span, err) }()

	var removed int64
	err = s.repo.RunInTx(ctx, func(tx store.Repository) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return lookup(err, apperr.ErrSessionNotFound)
		}
		if err := requireActive(session); err != nil {
			return err
		}
		removed, err = tx.ClearCart(ctx, sessionID)
		return err
	})
	if err != nil {
		err = classify("clear cart", err)
		return err
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	s.logger.Debug("Cart cleared", zap.String("session_id", sessionID), zap.Int64("removed", removed))
	s.broadcastCart(sessionID, []models.CartItem{})
	return nil
}

// GetCart returns a session's cart with its running total
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, lookup(err, apperr.ErrSessionNotFound)
	}

	items, err := s.repo.ListCartItems(ctx, sessionID)
	if err != nil {
		return nil, classify("list cart", err)
	}
	return newCartView(sessionID, items), nil
}

func newCartView(sessionID string, items []models.CartItem) *CartView {
	lines := make([]pricing.Line, len(items))
	count := 0
	for i, it := range items {
		lines[i] = pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
		count += it.Quantity
	}
	return &CartView{
		SessionID:   sessionID,
		Items:       items,
		TotalAmount: pricing.OrderTotal(lines),
		ItemCount:   count,
	}
}

func (s *CartService) broadcastCart(sessionID string, items []models.CartItem) {
	s.bus.Broadcast(models.RealtimeCartUpdate, models.CartUpdatePayload{
		SessionID: sessionID,
		Items:     items,
	}, realtime.SessionRoom(sessionID))
}
