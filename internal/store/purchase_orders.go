package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
)

// CreatePurchaseOrder inserts a purchase order and its items
func (s *Store) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder, items []models.PurchaseOrderItem) error {
	return s.inTx(ctx, func(uu *unit) error {
		if po.CreatedAt.IsZero() {
			po.CreatedAt = time.Now().UTC()
		}
		if err := sqlxGet(ctx, uu.q, &po.ID, `
			INSERT INTO purchase_orders (reference, supplier, status, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id`, po.Reference, po.Supplier, po.Status, po.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("purchase order %s: %w", po.Reference, ErrDuplicate)
			}
			return err
		}
		for i := range items {
			items[i].PurchaseOrderID = po.ID
			if err := sqlxGet(ctx, uu.q, &items[i].ID, `
				INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity)
				VALUES (?, ?, ?)
				RETURNING id`, po.ID, items[i].ProductID, items[i].Quantity); err != nil {
				return fmt.Errorf("failed to insert purchase order item: %w", err)
			}
		}
		return nil
	})
}

// GetPurchaseOrder retrieves a purchase order by ID
func (u *unit) GetPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := sqlxGet(ctx, u.q, &po, "SELECT * FROM purchase_orders WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// GetPurchaseOrderItems retrieves the items of a purchase order
func (u *unit) GetPurchaseOrderItems(ctx context.Context, purchaseOrderID int64) ([]models.PurchaseOrderItem, error) {
	var items []models.PurchaseOrderItem
	err := sqlxSelect(ctx, u.q, &items,
		"SELECT * FROM purchase_order_items WHERE purchase_order_id = ? ORDER BY id", purchaseOrderID)
	return items, err
}

// MarkPurchaseOrderReceived flips an Ordered purchase order to Received.
// It reports false when the order was not in Ordered status.
func (u *unit) MarkPurchaseOrderReceived(ctx context.Context, id int64, receivedBy string, at time.Time) (bool, error) {
	res, err := u.q.ExecContext(ctx, u.q.Rebind(`
		UPDATE purchase_orders SET status = ?, received_by = ?, received_at = ?
		WHERE id = ? AND status = ?`),
		models.PurchaseOrderStatusReceived, receivedBy, at, id, models.PurchaseOrderStatusOrdered)
	if err != nil {
		return false, fmt.Errorf("failed to mark purchase order received: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// GetPurchaseOrderByID retrieves a purchase order outside of any transaction
func (s *Store) GetPurchaseOrderByID(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	return s.pool().GetPurchaseOrder(ctx, id)
}
