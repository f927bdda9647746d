package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/pricing"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// nextStatus lists the manual forward transitions of an online order.
var nextStatus = map[string]string{
	models.OrderStatusPending:   models.OrderStatusConfirmed,
	models.OrderStatusConfirmed: models.OrderStatusReady,
	models.OrderStatusReady:     models.OrderStatusCompleted,
}

// cancellableStatuses are the states an order can be cancelled from.
var cancellableStatuses = []string{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusReady,
}

// OrderService handles online order business logic
type OrderService struct {
	store     *store.Store
	policies  PolicySource
	publisher EventPublisher
	now       func() time.Time
	newRef    func(time.Time) string
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, policies PolicySource, publisher EventPublisher) *OrderService {
	return &OrderService{
		store:     store,
		policies:  policies,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
		newRef:    newOrderReference,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest represents a request to place an online order
type PlaceOrderRequest struct {
	Items []LineRequest `json:"items"`
}

// OrderDetail is an order with its items
type OrderDetail struct {
	Order *models.OnlineOrder `json:"order"`
	Items []models.OrderItem  `json:"items"`
}

// PlaceOrder reserves stock for every line and records a Pending order in
// one atomic unit.
func (s *OrderService) PlaceOrder(ctx context.Context, customer string, req *PlaceOrderRequest) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if strings.TrimSpace(customer) == "" {
		return nil, newError(KindInvalidRequest, "customer identity is required")
	}
	if req == nil || len(req.Items) == 0 {
		return nil, newError(KindCartEmpty, "order has no items")
	}
	for _, line := range req.Items {
		if line.PerPiece {
			return nil, productError(KindInvalidRequest, line.ProductID,
				"per-piece quantities are only sold at the counter")
		}
	}

	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	detail := &OrderDetail{}

	err = retryDuplicate(ctx, func() error {
		err := s.store.InTx(ctx, func(u store.Unit) error {
			return s.recordOrder(ctx, u, customer, req, policy.Pricing, now, detail)
		})
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Warn("Order reference collision, retrying", zap.Error(err))
		}
		return err
	})
	if errors.Is(err, store.ErrDuplicate) {
		err = &Error{Kind: KindDuplicateReference, Message: "could not allocate a unique order reference", Err: err}
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", detail.Order.ID),
		zap.String("reference", detail.Order.Reference),
		zap.String("customer", customer))

	if err := s.publisher.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: now,
		},
		OrderID:   detail.Order.ID,
		Reference: detail.Order.Reference,
		Customer:  customer,
		Total:     detail.Order.Total,
		Items:     orderLineData(detail.Items),
	}); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return detail, nil
}

// recordOrder runs one attempt of the order unit with a fresh reference.
func (s *OrderService) recordOrder(ctx context.Context, u store.Unit, customer string, req *PlaceOrderRequest, policy pricing.Policy, now time.Time, detail *OrderDetail) error {
	lines, subtotal, err := VerifyLines(ctx, u, req.Items)
	if err != nil {
		return err
	}
	bd, err := policy.Calculate(subtotal, nil, decimal.Zero)
	if err != nil {
		return pricingError(err)
	}

	for _, line := range lines {
		ok, err := u.DecrementStock(ctx, line.Product.ID, line.StockUnits, now)
		if err != nil {
			return err
		}
		if !ok {
			util.StockDecrementRejected.Inc()
			return productError(KindInsufficientStock, line.Product.ID,
				"insufficient stock for %s", line.Product.Name)
		}
	}

	order := &models.OnlineOrder{
		Reference: s.newRef(now),
		Customer:  customer,
		Status:    models.OrderStatusPending,
		Total:     bd.Total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.InsertOrder(ctx, order); err != nil {
		return err
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	if err := u.InsertOrderItems(ctx, order.ID, items); err != nil {
		return err
	}

	detail.Order = order
	detail.Items = items
	return nil
}

// AdvanceOrder moves an order one step along Pending, Confirmed, Ready,
// Completed. The target must be the direct successor of the current state.
func (s *OrderService) AdvanceOrder(ctx context.Context, actor string, orderID int64, to string) (*models.OnlineOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AdvanceOrder")
	defer span.End()

	var from string
	for f, t := range nextStatus {
		if t == to {
			from = f
		}
	}
	if from == "" {
		return nil, newError(KindInvalidTransition, "cannot move an order to %q", to)
	}

	now := s.now().UTC()
	var order *models.OnlineOrder

	err := s.store.InTx(ctx, func(u store.Unit) error {
		ok, err := u.TransitionOrder(ctx, orderID, []string{from}, to, nil, now)
		if err != nil {
			return err
		}

		order, err = u.GetOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindItemNotFound, "order %d not found", orderID)
		}
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindInvalidTransition, "order %d is %s, cannot move to %s", orderID, order.Status, to)
		}

		return u.InsertActivity(ctx, &models.ActivityLog{
			Actor:     actor,
			Action:    "order_status_changed",
			Entity:    "online_order",
			EntityID:  orderID,
			Details:   from + " -> " + to,
			CreatedAt: now,
		})
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Order advanced", zap.Int64("order_id", orderID), zap.String("status", to))
	return order, nil
}

// CancelOrder cancels an open order and returns its reserved stock. Repeated
// calls never restore stock twice.
func (s *OrderService) CancelOrder(ctx context.Context, actor string, orderID int64, reason string) (*models.OnlineOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by " + actor
	}

	now := s.now().UTC()
	var (
		order *models.OnlineOrder
		items []models.OrderItem
	)

	err := s.store.InTx(ctx, func(u store.Unit) error {
		var (
			cancelled bool
			err       error
		)
		cancelled, items, err = cancelInUnit(ctx, u, orderID, cancellableStatuses, actor, reason, now)
		if err != nil {
			return err
		}

		order, err = u.GetOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindItemNotFound, "order %d not found", orderID)
		}
		if err != nil {
			return err
		}
		if !cancelled {
			return newError(KindInvalidTransition, "order %d is %s and cannot be cancelled", orderID, order.Status)
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.OrdersCancelledTotal.WithLabelValues("manual").Inc()
	s.logger.Info("Order cancelled", zap.Int64("order_id", orderID), zap.String("actor", actor))
	publishCancelled(ctx, s.publisher, s.logger, orderID, reason, items, now)
	return order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindItemNotFound, "order %d not found", orderID)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// cancelInUnit flips the order to Cancelled if it is in one of from, then
// returns every item to stock and records the cancellation. When the flip
// matches nothing it reports false and touches no stock.
func cancelInUnit(ctx context.Context, u store.Unit, orderID int64, from []string, actor, reason string, at time.Time) (bool, []models.OrderItem, error) {
	ok, err := u.TransitionOrder(ctx, orderID, from, models.OrderStatusCancelled, &reason, at)
	if err != nil || !ok {
		return false, nil, err
	}

	items, err := u.GetOrderItems(ctx, orderID)
	if err != nil {
		return false, nil, err
	}

	units := 0
	for _, item := range items {
		if err := u.IncrementStock(ctx, item.ProductID, item.Quantity, at); err != nil {
			return false, nil, fmt.Errorf("failed to restore stock for product %d: %w", item.ProductID, err)
		}
		units += item.Quantity
	}

	if err := u.InsertActivity(ctx, &models.ActivityLog{
		Actor:     actor,
		Action:    "order_cancelled",
		Entity:    "online_order",
		EntityID:  orderID,
		Details:   fmt.Sprintf("reason=%s items=%d units=%d", reason, len(items), units),
		CreatedAt: at,
	}); err != nil {
		return false, nil, err
	}

	util.StockRestoredUnits.Add(float64(units))
	return true, items, nil
}

func publishCancelled(ctx context.Context, publisher EventPublisher, logger *zap.Logger, orderID int64, reason string, items []models.OrderItem, at time.Time) {
	if err := publisher.PublishOrderCancelled(ctx, &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: at,
		},
		OrderID: orderID,
		Reason:  reason,
		Items:   orderLineData(items),
	}); err != nil {
		logger.Error("Failed to publish OrderCancelled event", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func orderLineData(items []models.OrderItem) []models.LineData {
	out := make([]models.LineData, 0, len(items))
	for _, item := range items {
		out = append(out, models.LineData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}

func newOrderReference(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("ORD-%s-%s", at.UTC().Format("20060102"), suffix)
}
