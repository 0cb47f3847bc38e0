package store

import (
	"context"

	"dinein-service/internal/models"
)

// ListCartItems lists a session's cart in insertion order
func (q *Queries) ListCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := q.q.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE session_id = $1 ORDER BY created_at, id", sessionID)
	return items, mapErr(err)
}

// GetCartItem retrieves a cart item by ID
func (q *Queries) GetCartItem(ctx context.Context, id string) (*models.CartItem, error) {
	var item models.CartItem
	if err := q.get(ctx, &item, "SELECT * FROM cart_items WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindCartItemByMergeKey returns and row-locks the cart line identical to mergeKey
func (q *Queries) FindCartItemByMergeKey(ctx context.Context, sessionID, mergeKey string) (*models.CartItem, error) {
	var item models.CartItem
	err := q.get(ctx, &item,
		"SELECT * FROM cart_items WHERE session_id = $1 AND merge_key = $2 FOR UPDATE",
		sessionID, mergeKey)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateCartItem inserts a new cart row
func (q *Queries) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (id, session_id, menu_item_id, name, quantity, selected_variant,
		                        selected_add_ons, special_instructions, unit_price, merge_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	row := q.q.QueryRowxContext(ctx, query,
		item.ID, item.SessionID, item.MenuItemID, item.Name, item.Quantity, item.SelectedVariant,
		item.SelectedAddOns, item.SpecialInstructions, item.UnitPrice, item.MergeKey)
	return mapErr(row.Scan(&item.CreatedAt, &item.UpdatedAt))
}

// UpdateCartItem rewrites the quantity and price-affecting fields of a cart row
func (q *Queries) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		UPDATE cart_items
		SET quantity = $1, unit_price = $2, selected_variant = $3, selected_add_ons = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`

	return q.get(ctx, &item.UpdatedAt, query,
		item.Quantity, item.UnitPrice, item.SelectedVariant, item.SelectedAddOns, item.ID)
}

// DeleteCartItem deletes a cart row, reporting whether it existed
func (q *Queries) DeleteCartItem(ctx context.Context, id string) (bool, error) {
	n, err := q.exec(ctx, "DELETE FROM cart_items WHERE id = $1", id)
	return n > 0, err
}

// ClearCart deletes every cart row of a session
func (q *Queries) ClearCart(ctx context.Context, sessionID string) (int64, error) {
	return q.exec(ctx, "DELETE FROM cart_items WHERE session_id = $1", sessionID)
}
