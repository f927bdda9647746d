package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleCompleted publishes SaleCompleted event
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishRewardIssued publishes RewardIssued event
func (ep *EventPublisher) PublishRewardIssued(ctx context.Context, event *models.RewardIssuedEvent) error {
	key := fmt.Sprintf("reward-%s", event.Code)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPurchaseOrderReceived func(context.Context, *models.PurchaseOrderReceivedEvent) error
	logger                  *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPurchaseOrderReceived registers a handler for PurchaseOrderReceived events
func (eh *EventHandler) OnPurchaseOrderReceived(handler func(context.Context, *models.PurchaseOrderReceivedEvent) error) {
	eh.onPurchaseOrderReceived = handler
}

// HandleMessage routes messages to appropriate handlers. Undecodable
// messages are dropped rather than retried forever.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		eh.logger.Error("Dropping undecodable message", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePurchaseOrderReceived:
		if eh.onPurchaseOrderReceived != nil {
			var event models.PurchaseOrderReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				eh.logger.Error("Dropping malformed PurchaseOrderReceived event", zap.Error(err))
				return nil
			}
			return eh.onPurchaseOrderReceived(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
