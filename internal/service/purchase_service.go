package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"go.uber.org/zap"
)

// ReceiveResult summarizes a purchase order receipt
type ReceiveResult struct {
	PurchaseOrderID int64 `json:"purchase_order_id"`
	ItemsReceived   int   `json:"items_received"`
	UnitsReceived   int   `json:"units_received"`
}

// PurchaseService brings supplier deliveries into stock
type PurchaseService struct {
	store  *store.Store
	now    func() time.Time
	logger *zap.Logger
}

func NewPurchaseService(store *store.Store) *PurchaseService {
	return &PurchaseService{
		store:  store,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// ReceivePurchaseOrder marks an Ordered purchase order Received and adds
// every item to stock, exactly once per purchase order.
func (s *PurchaseService) ReceivePurchaseOrder(ctx context.Context, poID int64, receivedBy string) (*ReceiveResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.ReceivePurchaseOrder")
	defer span.End()

	now := s.now().UTC()
	result := &ReceiveResult{PurchaseOrderID: poID}

	err := s.store.InTx(ctx, func(u store.Unit) error {
		ok, err := u.MarkPurchaseOrderReceived(ctx, poID, receivedBy, now)
		if err != nil {
			return err
		}
		if !ok {
			po, err := u.GetPurchaseOrder(ctx, poID)
			if errors.Is(err, store.ErrNotFound) {
				return newError(KindItemNotFound, "purchase order %d not found", poID)
			}
			if err != nil {
				return err
			}
			if po.Status == models.PurchaseOrderStatusReceived {
				return newError(KindAlreadyReceived, "purchase order %d was already received", poID)
			}
			return newError(KindInvalidTransition, "purchase order %d is %s", poID, po.Status)
		}

		items, err := u.GetPurchaseOrderItems(ctx, poID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := u.IncrementStock(ctx, item.ProductID, item.Quantity, now); err != nil {
				return fmt.Errorf("failed to receive product %d: %w", item.ProductID, err)
			}
			result.ItemsReceived++
			result.UnitsReceived += item.Quantity
		}

		return u.InsertActivity(ctx, &models.ActivityLog{
			Actor:     receivedBy,
			Action:    "purchase_order_received",
			Entity:    "purchase_order",
			EntityID:  poID,
			Details:   fmt.Sprintf("items=%d units=%d", result.ItemsReceived, result.UnitsReceived),
			CreatedAt: now,
		})
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.PurchaseOrdersReceivedTotal.Inc()
	util.StockRestoredUnits.Add(float64(result.UnitsReceived))
	s.logger.Info("Purchase order received",
		zap.Int64("purchase_order_id", poID),
		zap.String("received_by", receivedBy),
		zap.Int("units", result.UnitsReceived))
	return result, nil
}

// HandlePurchaseOrderReceived applies a PURCHASE_ORDER_RECEIVED event.
// Redelivered events and already received orders are acknowledged.
func (s *PurchaseService) HandlePurchaseOrderReceived(ctx context.Context, evt *models.PurchaseOrderReceivedEvent) error {
	done, err := s.store.IsEventProcessed(ctx, evt.EventID)
	if err != nil {
		return err
	}
	if done {
		s.logger.Debug("Event already processed", zap.String("event_id", evt.EventID))
		return nil
	}

	receivedBy := evt.ReceivedBy
	if receivedBy == "" {
		receivedBy = "system:purchasing"
	}

	_, err = s.ReceivePurchaseOrder(ctx, evt.PurchaseOrderID, receivedBy)
	switch KindOf(err) {
	case "":
		if err != nil {
			return err
		}
	case KindAlreadyReceived, KindItemNotFound, KindInvalidTransition:
		s.logger.Warn("Ignoring purchase order event",
			zap.String("event_id", evt.EventID),
			zap.Int64("purchase_order_id", evt.PurchaseOrderID),
			zap.Error(err))
	default:
		return err
	}

	return s.store.MarkEventProcessed(ctx, evt.EventID, evt.EventType, s.now().UTC())
}
