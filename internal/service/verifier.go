package service

import (
	"context"
	"errors"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/pricing"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"

	"github.com/shopspring/decimal"
)

// LineRequest is one cart line as submitted by the client. Prices are never
// accepted from the client.
type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	PerPiece  bool  `json:"per_piece"`
}

// VerifiedLine is a cart line priced from the catalog.
type VerifiedLine struct {
	Product   *models.Product
	Quantity  int
	PerPiece  bool
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	// StockUnits is what the line removes from stock_quantity, in boxes.
	StockUnits int
}

// MaxLineQuantity bounds a single line so box counts and totals stay inside
// the int4 stock and quantity columns.
const MaxLineQuantity = 100000

// VerifyLines re-prices every line from the catalog as read through u and
// returns the lines with their running subtotal.
func VerifyLines(ctx context.Context, u store.Unit, lines []LineRequest) ([]VerifiedLine, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, newError(KindCartEmpty, "cart is empty")
	}

	verified := make([]VerifiedLine, 0, len(lines))
	subtotal := decimal.Zero

	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > MaxLineQuantity {
			return nil, decimal.Zero, productError(KindInvalidRequest, line.ProductID,
				"quantity for product %d must be between 1 and %d", line.ProductID, MaxLineQuantity)
		}

		product, err := u.FindProduct(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, decimal.Zero, productError(KindItemNotFound, line.ProductID,
				"product %d not found", line.ProductID)
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !product.Active {
			return nil, decimal.Zero, productError(KindItemNotFound, line.ProductID,
				"product %d is not available", line.ProductID)
		}

		v := VerifiedLine{
			Product:    product,
			Quantity:   line.Quantity,
			PerPiece:   line.PerPiece,
			UnitPrice:  UnitPrice(product, line.PerPiece),
			StockUnits: StockUnits(product, line.Quantity, line.PerPiece),
		}
		v.LineTotal = pricing.LineTotal(v.UnitPrice, v.Quantity)
		subtotal = subtotal.Add(v.LineTotal)
		verified = append(verified, v)
	}

	return verified, subtotal, nil
}

// UnitPrice is the authoritative price of one unit of product.
func UnitPrice(p *models.Product, perPiece bool) decimal.Decimal {
	if !perPiece {
		return p.SellingPrice
	}
	if p.PricePerPiece != nil && p.PricePerPiece.IsPositive() {
		return *p.PricePerPiece
	}
	return pricing.PiecePrice(p.SellingPrice, p.PiecesPerBox)
}

// StockUnits converts a sold quantity into boxes. Piece sales open a box,
// so any remainder consumes a whole one.
func StockUnits(p *models.Product, quantity int, perPiece bool) int {
	if !perPiece || p.PiecesPerBox <= 1 {
		return quantity
	}
	boxes := quantity / p.PiecesPerBox
	if quantity%p.PiecesPerBox != 0 {
		boxes++
	}
	return boxes
}
