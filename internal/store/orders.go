package store

import (
	"context"
	"fmt"
	"strings"

	"dinein-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const defaultOrderListLimit = 50

// CreateOrder inserts an order and its items
func (q *Queries) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, session_id, restaurant_id, table_id, status, total_amount,
		                    estimated_preparation_time, special_instructions, idempotency_key, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := q.exec(ctx, query,
		order.ID, order.SessionID, order.RestaurantID, order.TableID, order.Status, order.TotalAmount,
		order.EstimatedPreparationTime, order.SpecialInstructions, order.IdempotencyKey, order.PlacedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		item.LineNo = i + 1
		if _, err := q.exec(ctx, `
			INSERT INTO order_items (id, order_id, line_no, menu_item_id, name, quantity, selected_variant,
			                         selected_add_ons, special_instructions, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			item.ID, item.OrderID, item.LineNo, item.MenuItemID, item.Name, item.Quantity, item.SelectedVariant,
			item.SelectedAddOns, item.SpecialInstructions, item.UnitPrice); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

// GetOrder retrieves an order with its items
func (q *Queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := q.get(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, err
	}
	if err := q.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder retrieves an order (without items) and holds its row lock
func (q *Queries) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := q.get(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order of a session by idempotency key.
// Keys are scoped to the session that placed the order.
func (q *Queries) GetOrderByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.Order, error) {
	var order models.Order
	if err := q.get(ctx, &order,
		"SELECT * FROM orders WHERE session_id = $1 AND idempotency_key = $2", sessionID, key); err != nil {
		return nil, err
	}
	if err := q.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus writes the status fields of an order
func (q *Queries) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	n, err := q.exec(ctx, `
		UPDATE orders
		SET status = $1, prepared_at = $2, served_at = $3, cancelled_at = $4, cancellation_reason = $5
		WHERE id = $6`,
		order.Status, order.PreparedAt, order.ServedAt, order.CancelledAt, order.CancellationReason, order.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOrders lists orders newest first
func (q *Queries) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.RestaurantID != "" {
		args = append(args, filter.RestaurantID)
		where = append(where, fmt.Sprintf("restaurant_id = $%d", len(args)))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		where = append(where, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	args = append(args, limit)

	query := "SELECT * FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY placed_at DESC LIMIT $%d", len(args))

	orders := []models.Order{}
	if err := q.q.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, mapErr(err)
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := q.attachItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (q *Queries) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY order_id, line_no", ids)
	if err != nil {
		return err
	}
	query = q.q.Rebind(query)

	var items []models.OrderItem
	if err := q.q.SelectContext(ctx, &items, query, args...); err != nil {
		return mapErr(err)
	}
	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}
