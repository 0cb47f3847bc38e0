package store

import (
	"context"

	"dinein-service/internal/models"

	"github.com/jmoiron/sqlx"
)

func (q *Queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return mapErr(q.q.GetContext(ctx, dest, query, args...))
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// GetRestaurant retrieves a restaurant by ID
func (q *Queries) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := q.get(ctx, &r, "SELECT * FROM restaurants WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &r, nil
}

// FindTableForScan matches an active table by id, restaurant and secret QR token
func (q *Queries) FindTableForScan(ctx context.Context, tableID, restaurantID, qrCode string) (*models.Table, error) {
	var t models.Table
	err := q.get(ctx, &t, `
		SELECT * FROM tables
		WHERE id = $1 AND restaurant_id = $2 AND qr_code = $3 AND is_active = TRUE`,
		tableID, restaurantID, qrCode)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTable retrieves a table by ID
func (q *Queries) GetTable(ctx context.Context, id string) (*models.Table, error) {
	var t models.Table
	if err := q.get(ctx, &t, "SELECT * FROM tables WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &t, nil
}

// LockTable retrieves a table and holds its row lock until the transaction ends
func (q *Queries) LockTable(ctx context.Context, id string) (*models.Table, error) {
	var t models.Table
	if err := q.get(ctx, &t, "SELECT * FROM tables WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &t, nil
}

// SetTableSession sets or clears (nil) the table's current session pointer
func (q *Queries) SetTableSession(ctx context.Context, tableID string, sessionID *string) error {
	n, err := q.exec(ctx, "UPDATE tables SET current_session_id = $1 WHERE id = $2", sessionID, tableID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMenuItem retrieves a menu item by ID
func (q *Queries) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var m models.MenuItem
	if err := q.get(ctx, &m, "SELECT * FROM menu_items WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMenuItemsByIDs retrieves multiple menu items by IDs
func (q *Queries) GetMenuItemsByIDs(ctx context.Context, ids []string) ([]models.MenuItem, error) {
	if len(ids) == 0 {
		return []models.MenuItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM menu_items WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = q.q.Rebind(query)

	var items []models.MenuItem
	err = q.q.SelectContext(ctx, &items, query, args...)
	return items, mapErr(err)
}

// ListCategories lists the active categories of a restaurant in display order
func (q *Queries) ListCategories(ctx context.Context, restaurantID string) ([]models.Category, error) {
	var categories []models.Category
	err := q.q.SelectContext(ctx, &categories, `
		SELECT * FROM categories
		WHERE restaurant_id = $1 AND is_active = TRUE
		ORDER BY sort_order, name`, restaurantID)
	return categories, mapErr(err)
}

// ListAvailableMenuItems lists the orderable items of a restaurant in display order
func (q *Queries) ListAvailableMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := q.q.SelectContext(ctx, &items, `
		SELECT * FROM menu_items
		WHERE restaurant_id = $1 AND is_available = TRUE
		ORDER BY sort_order, name`, restaurantID)
	return items, mapErr(err)
}

// ListQuickAddItems lists available items flagged for one-tap ordering
func (q *Queries) ListQuickAddItems(ctx context.Context, restaurantID string, limit int) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := q.q.SelectContext(ctx, &items, `
		SELECT * FROM menu_items
		WHERE restaurant_id = $1 AND is_available = TRUE AND quick_add_order > 0
		ORDER BY quick_add_order
		LIMIT $2`, restaurantID, limit)
	return items, mapErr(err)
}

// SetMenuItemAvailability toggles availability and returns the updated item
func (q *Queries) SetMenuItemAvailability(ctx context.Context, id string, available bool) (*models.MenuItem, error) {
	var m models.MenuItem
	err := q.get(ctx, &m,
		"UPDATE menu_items SET is_available = $1 WHERE id = $2 RETURNING *", available, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
