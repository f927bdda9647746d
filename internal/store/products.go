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

const productColumns = `id, name, selling_price, price_per_piece, pieces_per_box, stock_quantity,
	is_active, requires_prescription, expiry_date, created_at, updated_at`

// Unit is the set of operations available inside one atomic unit of work.
type Unit interface {
	FindProduct(ctx context.Context, id int64) (*models.Product, error)
	DecrementStock(ctx context.Context, productID int64, quantity int, at time.Time) (bool, error)
	IncrementStock(ctx context.Context, productID int64, quantity int, at time.Time) error

	InsertSale(ctx context.Context, sale *models.Sale) error
	InsertSaleItems(ctx context.Context, saleID int64, items []models.SaleItem) error

	InsertOrder(ctx context.Context, order *models.OnlineOrder) error
	InsertOrderItems(ctx context.Context, orderID int64, items []models.OrderItem) error
	GetOrder(ctx context.Context, id int64) (*models.OnlineOrder, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	TransitionOrder(ctx context.Context, orderID int64, from []string, to string, reason *string, at time.Time) (bool, error)

	GetRewardCode(ctx context.Context, code string) (*models.RewardCode, error)
	RedeemRewardCode(ctx context.Context, code, redeemer string, at time.Time) (bool, error)
	AddLoyaltyPoints(ctx context.Context, holder string, points int64, at time.Time) error

	GetPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	GetPurchaseOrderItems(ctx context.Context, purchaseOrderID int64) ([]models.PurchaseOrderItem, error)
	MarkPurchaseOrderReceived(ctx context.Context, id int64, receivedBy string, at time.Time) (bool, error)

	InsertActivity(ctx context.Context, entry *models.ActivityLog) error
}

// FindProduct retrieves a product by ID
func (u *unit) FindProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlxGet(ctx, u.q, &product,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementStock removes quantity from stock only if enough is on hand.
// It reports false when the guard rejected the update.
func (u *unit) DecrementStock(ctx context.Context, productID int64, quantity int, at time.Time) (bool, error) {
	res, err := u.q.ExecContext(ctx, u.q.Rebind(
		`UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ?
		 WHERE id = ? AND stock_quantity >= ?`),
		quantity, at, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// IncrementStock adds quantity back to stock
func (u *unit) IncrementStock(ctx context.Context, productID int64, quantity int, at time.Time) error {
	res, err := u.q.ExecContext(ctx, u.q.Rebind(
		`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?`),
		quantity, at, productID)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// CreateProduct inserts a catalog product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := s.db.Rebind(`
		INSERT INTO products (name, selling_price, price_per_piece, pieces_per_box, stock_quantity,
			is_active, requires_prescription, expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	return s.db.GetContext(ctx, &p.ID, query,
		p.Name, p.SellingPrice, p.PricePerPiece, p.PiecesPerBox, p.StockQuantity,
		p.Active, p.RequiresPrescription, p.ExpiryDate, p.CreatedAt, p.UpdatedAt)
}

// GetProductByID retrieves a product by ID outside of any transaction
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return s.pool().FindProduct(ctx, id)
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// IncrementStock adds stock outside of a larger unit of work
func (s *Store) IncrementStock(ctx context.Context, productID int64, quantity int, at time.Time) error {
	return s.pool().IncrementStock(ctx, productID, quantity, at)
}

func sqlxGet(ctx context.Context, q queryer, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func sqlxSelect(ctx context.Context, q queryer, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}
