package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted         = "SALE_COMPLETED"
	EventTypeRewardIssued          = "REWARD_ISSUED"
	EventTypeOrderPlaced           = "ORDER_PLACED"
	EventTypeOrderCancelled        = "ORDER_CANCELLED"
	EventTypePurchaseOrderReceived = "PURCHASE_ORDER_RECEIVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent is emitted once a sale has committed
type SaleCompletedEvent struct {
	BaseEvent
	SaleID           int64           `json:"sale_id"`
	Reference        string          `json:"reference"`
	Cashier          string          `json:"cashier"`
	PreDiscountTotal decimal.Decimal `json:"pre_discount_total"`
	Total            decimal.Decimal `json:"total"`
	Items            []LineData      `json:"items"`
}

// RewardIssuedEvent published after a reward code is minted
type RewardIssuedEvent struct {
	BaseEvent
	Code      string    `json:"code"`
	SourceRef string    `json:"source_ref"`
	Points    int64     `json:"points"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OrderPlacedEvent published when an online order reserves stock
type OrderPlacedEvent struct {
	BaseEvent
	OrderID   int64           `json:"order_id"`
	Reference string          `json:"reference"`
	Customer  string          `json:"customer"`
	Total     decimal.Decimal `json:"total"`
	Items     []LineData      `json:"items"`
}

// OrderCancelledEvent published when an order is cancelled and its stock restored
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64      `json:"order_id"`
	Reason  string     `json:"reason"`
	Items   []LineData `json:"items"`
}

// PurchaseOrderReceivedEvent is consumed from the purchasing system
type PurchaseOrderReceivedEvent struct {
	BaseEvent
	PurchaseOrderID int64  `json:"purchase_order_id"`
	ReceivedBy      string `json:"received_by"`
}

// LineData represents item data in events
type LineData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
