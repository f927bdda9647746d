package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDiscountIneligible is returned when a discount tier's minimum subtotal is not met.
	ErrDiscountIneligible = errors.New("discount not applicable to this subtotal")
	// ErrInvalidDiscount is returned for a discount percent outside 0-100.
	ErrInvalidDiscount = errors.New("discount percent must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// Tier restricts a discount percent to subtotals at or above MinSubtotal.
type Tier struct {
	Percent     decimal.Decimal
	MinSubtotal decimal.Decimal
}

// Policy holds the pricing rules in effect for a calculation.
type Policy struct {
	TaxRate decimal.Decimal
	Tiers   []Tier
}

// Breakdown is the receipt arithmetic for one sale.
type Breakdown struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	BeforeDiscount  decimal.Decimal `json:"before_discount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	Tendered        decimal.Decimal `json:"amount_tendered"`
	Change          decimal.Decimal `json:"change"`
}

// Money rounds to two decimal places, half away from zero.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal is the rounded extension of a unit price.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return Money(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// PiecePrice derives the price of a single piece from a box price.
func PiecePrice(boxPrice decimal.Decimal, piecesPerBox int) decimal.Decimal {
	if piecesPerBox < 1 {
		piecesPerBox = 1
	}
	return Money(boxPrice.Div(decimal.NewFromInt(int64(piecesPerBox))))
}

// CheckDiscount validates a discount percent against the policy without computing totals.
func (p Policy) CheckDiscount(subtotal decimal.Decimal, discountPercent *decimal.Decimal) error {
	if discountPercent == nil {
		return nil
	}
	pct := *discountPercent
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return ErrInvalidDiscount
	}
	for _, tier := range p.Tiers {
		if tier.Percent.Equal(pct) && subtotal.LessThan(tier.MinSubtotal) {
			return fmt.Errorf("%w: %s%% requires a subtotal of at least %s",
				ErrDiscountIneligible, pct.String(), tier.MinSubtotal.StringFixed(2))
		}
	}
	return nil
}

// Calculate computes tax, discount, total and change. Every derived value is
// rounded as it is produced so receipts match line by line.
func (p Policy) Calculate(subtotal decimal.Decimal, discountPercent *decimal.Decimal, tendered decimal.Decimal) (*Breakdown, error) {
	if err := p.CheckDiscount(subtotal, discountPercent); err != nil {
		return nil, err
	}

	subtotal = Money(subtotal)
	tax := Money(subtotal.Mul(p.TaxRate))
	beforeDiscount := subtotal.Add(tax)

	pct := decimal.Zero
	discountAmount := decimal.Zero
	if discountPercent != nil {
		pct = *discountPercent
		discountAmount = Money(beforeDiscount.Mul(pct).Div(hundred))
	}

	total := Money(beforeDiscount.Sub(discountAmount))
	change := Money(tendered.Sub(total))
	if change.IsNegative() {
		change = decimal.Zero
	}

	return &Breakdown{
		Subtotal:        subtotal,
		Tax:             tax,
		BeforeDiscount:  beforeDiscount,
		DiscountPercent: pct,
		DiscountAmount:  discountAmount,
		Total:           total,
		Tendered:        tendered,
		Change:          change,
	}, nil
}

// RewardPoints awards pointsPerBlock for every full block of the pre-discount total.
func RewardPoints(preDiscountTotal, block decimal.Decimal, pointsPerBlock int64) int64 {
	if !block.IsPositive() || preDiscountTotal.IsNegative() {
		return 0
	}
	blocks := preDiscountTotal.Div(block).Floor().IntPart()
	return blocks * pointsPerBlock
}
