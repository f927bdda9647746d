package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertOrder creates a new online order
func (u *unit) InsertOrder(ctx context.Context, order *models.OnlineOrder) error {
	query := `
		INSERT INTO online_orders (reference, customer, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := sqlxGet(ctx, u.q, &order.ID, query,
		order.Reference, order.Customer, order.Status, order.Total, order.CreatedAt, order.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("order reference %s: %w", order.Reference, ErrDuplicate)
	}
	return err
}

// InsertOrderItems creates the reserved lines of an order
func (u *unit) InsertOrderItems(ctx context.Context, orderID int64, items []models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`

	for i := range items {
		items[i].OrderID = orderID
		item := &items[i]
		if err := sqlxGet(ctx, u.q, &item.ID, query,
			orderID, item.ProductID, item.Name, item.UnitPrice, item.Quantity); err != nil {
			return fmt.Errorf("failed to insert order item for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// GetOrder retrieves an order by ID
func (u *unit) GetOrder(ctx context.Context, id int64) (*models.OnlineOrder, error) {
	var order models.OnlineOrder
	err := sqlxGet(ctx, u.q, &order, "SELECT * FROM online_orders WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (u *unit) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlxSelect(ctx, u.q, &items, "SELECT * FROM order_items WHERE order_id = ? ORDER BY id", orderID)
	return items, err
}

// TransitionOrder moves an order to status `to` only if it is currently in one
// of the `from` statuses. Cancelled orders get their cancellation timestamp and
// reason recorded. It reports false when the order was not in an allowed status.
func (u *unit) TransitionOrder(ctx context.Context, orderID int64, from []string, to string, reason *string, at time.Time) (bool, error) {
	var (
		query string
		args  []interface{}
		err   error
	)
	if to == models.OrderStatusCancelled {
		query, args, err = sqlx.In(`
			UPDATE online_orders SET status = ?, cancel_reason = ?, cancelled_at = ?, updated_at = ?
			WHERE id = ? AND status IN (?)`, to, reason, at, at, orderID, from)
	} else {
		query, args, err = sqlx.In(`
			UPDATE online_orders SET status = ?, updated_at = ?
			WHERE id = ? AND status IN (?)`, to, at, orderID, from)
	}
	if err != nil {
		return false, err
	}

	res, err := u.q.ExecContext(ctx, u.q.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// GetOrderByID retrieves an order outside of any transaction
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.OnlineOrder, error) {
	return s.pool().GetOrder(ctx, id)
}

// GetOrderItemsByOrderID retrieves the items of an order outside of any transaction
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return s.pool().GetOrderItems(ctx, orderID)
}

// ListStalePendingOrders returns Pending order IDs created before cutoff, oldest first
func (s *Store) ListStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	var ids []int64
	err := sqlxSelect(ctx, s.db, &ids, `
		SELECT id FROM online_orders
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, models.OrderStatusPending, cutoff, limit)
	return ids, err
}
