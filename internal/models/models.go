package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a stocked item in the catalog
type Product struct {
	ID                   int64            `db:"id" json:"id"`
	Name                 string           `db:"name" json:"name"`
	SellingPrice         decimal.Decimal  `db:"selling_price" json:"selling_price"`
	PricePerPiece        *decimal.Decimal `db:"price_per_piece" json:"price_per_piece,omitempty"`
	PiecesPerBox         int              `db:"pieces_per_box" json:"pieces_per_box"`
	StockQuantity        int              `db:"stock_quantity" json:"stock_quantity"`
	Active               bool             `db:"is_active" json:"is_active"`
	RequiresPrescription bool             `db:"requires_prescription" json:"requires_prescription"`
	ExpiryDate           *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// Sale is the durable record of a completed POS transaction
type Sale struct {
	ID              int64           `db:"id" json:"id"`
	Reference       string          `db:"reference" json:"reference"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total           decimal.Decimal `db:"total" json:"total"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	AmountTendered  decimal.Decimal `db:"amount_tendered" json:"amount_tendered"`
	ChangeAmount    decimal.Decimal `db:"change_amount" json:"change_amount"`
	Cashier         string          `db:"cashier" json:"cashier"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// SaleItem is one line of a sale with name and price snapshots
type SaleItem struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"product_name" json:"product_name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	PerPiece  bool            `db:"per_piece" json:"per_piece"`
	LineTotal decimal.Decimal `db:"line_total" json:"line_total"`
}

// RewardCode is a single-use loyalty code issued after a sale or order
type RewardCode struct {
	ID         int64      `db:"id" json:"id"`
	Code       string     `db:"code" json:"code"`
	SourceType string     `db:"source_type" json:"source_type"`
	SourceRef  string     `db:"source_ref" json:"source_ref"`
	Points     int64      `db:"points" json:"points"`
	Redeemed   bool       `db:"redeemed" json:"redeemed"`
	RedeemedBy *string    `db:"redeemed_by" json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
}

// LoyaltyAccount holds redeemed points per customer
type LoyaltyAccount struct {
	Holder    string    `db:"holder" json:"holder"`
	Points    int64     `db:"points" json:"points"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OnlineOrder is a customer order placed outside the POS
type OnlineOrder struct {
	ID           int64           `db:"id" json:"id"`
	Reference    string          `db:"reference" json:"reference"`
	Customer     string          `db:"customer" json:"customer"`
	Status       string          `db:"status" json:"status"`
	Total        decimal.Decimal `db:"total" json:"total"`
	CancelReason *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	CancelledAt  *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// OrderItem is a reserved line of an online order
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"product_name" json:"product_name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
}

// PurchaseOrder is a supplier delivery awaiting receipt
type PurchaseOrder struct {
	ID         int64      `db:"id" json:"id"`
	Reference  string     `db:"reference" json:"reference"`
	Supplier   string     `db:"supplier" json:"supplier"`
	Status     string     `db:"status" json:"status"`
	ReceivedBy *string    `db:"received_by" json:"received_by,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"received_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// PurchaseOrderItem is a quantity of one product on a purchase order
type PurchaseOrderItem struct {
	ID              int64 `db:"id" json:"id"`
	PurchaseOrderID int64 `db:"purchase_order_id" json:"purchase_order_id"`
	ProductID       int64 `db:"product_id" json:"product_id"`
	Quantity        int   `db:"quantity" json:"quantity"`
}

// ActivityLog is an audit trail entry
type ActivityLog struct {
	ID        int64     `db:"id" json:"id"`
	Actor     string    `db:"actor" json:"actor"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  int64     `db:"entity_id" json:"entity_id"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Setting is a stored override of a business default
type Setting struct {
	Key       string    `db:"setting_key" json:"key"`
	Value     string    `db:"setting_value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending   = "Pending"
	OrderStatusConfirmed = "Confirmed"
	OrderStatusReady     = "Ready"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)

// Purchase order statuses
const (
	PurchaseOrderStatusOrdered   = "Ordered"
	PurchaseOrderStatusReceived  = "Received"
	PurchaseOrderStatusCancelled = "Cancelled"
)

// Reward sources
const (
	RewardSourcePOS    = "pos"
	RewardSourceOnline = "online"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
