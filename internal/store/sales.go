package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
)

// InsertSale inserts the sale header and fills in its ID
func (u *unit) InsertSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (reference, subtotal, tax_amount, discount_percent, discount_amount, total,
			payment_method, amount_tendered, change_amount, cashier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := sqlxGet(ctx, u.q, &sale.ID, query,
		sale.Reference, sale.Subtotal, sale.TaxAmount, sale.DiscountPercent, sale.DiscountAmount,
		sale.Total, sale.PaymentMethod, sale.AmountTendered, sale.ChangeAmount, sale.Cashier,
		sale.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("sale reference %s: %w", sale.Reference, ErrDuplicate)
	}
	return err
}

// InsertSaleItems inserts the lines of a sale
func (u *unit) InsertSaleItems(ctx context.Context, saleID int64, items []models.SaleItem) error {
	query := `
		INSERT INTO sale_items (sale_id, product_id, product_name, unit_price, quantity, per_piece, line_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	for i := range items {
		items[i].SaleID = saleID
		item := &items[i]
		if err := sqlxGet(ctx, u.q, &item.ID, query,
			saleID, item.ProductID, item.Name, item.UnitPrice, item.Quantity, item.PerPiece, item.LineTotal); err != nil {
			return fmt.Errorf("failed to insert sale item for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// GetSaleByID retrieves a sale header
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := sqlxGet(ctx, s.db, &sale, "SELECT * FROM sales WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleItems retrieves all lines of a sale
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := sqlxSelect(ctx, s.db, &items, "SELECT * FROM sale_items WHERE sale_id = ? ORDER BY id", saleID)
	return items, err
}

// CountSales returns the number of recorded sales
func (s *Store) CountSales(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sales")
	return n, err
}
