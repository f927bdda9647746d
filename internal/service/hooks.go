package service

import (
	"context"
	"fmt"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"go.uber.org/zap"
)

// EventPublisher emits domain events after state has committed.
type EventPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishRewardIssued(ctx context.Context, event *models.RewardIssuedEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishSaleCompleted(context.Context, *models.SaleCompletedEvent) error {
	return nil
}

func (nopPublisher) PublishRewardIssued(context.Context, *models.RewardIssuedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderCancelled(context.Context, *models.OrderCancelledEvent) error {
	return nil
}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// SaleHook runs after a sale has committed. A hook may enrich the response;
// its error is logged and never reverses the sale.
type SaleHook interface {
	Name() string
	AfterCommit(ctx context.Context, evt *models.SaleCompletedEvent, resp *CreateSaleResponse) error
}

// runHooks invokes every hook in order, isolating each from the others.
func runHooks(ctx context.Context, logger *zap.Logger, hooks []SaleHook, evt *models.SaleCompletedEvent, resp *CreateSaleResponse) {
	for _, h := range hooks {
		if err := runHook(ctx, h, evt, resp); err != nil {
			util.HookFailuresTotal.WithLabelValues(h.Name()).Inc()
			logger.Error("Post-commit hook failed",
				zap.String("hook", h.Name()),
				zap.String("sale_reference", evt.Reference),
				zap.Error(err))
		}
	}
}

func runHook(ctx context.Context, h SaleHook, evt *models.SaleCompletedEvent, resp *CreateSaleResponse) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return h.AfterCommit(ctx, evt, resp)
}

// ActivityHook writes the sale to the audit trail.
type ActivityHook struct {
	store *store.Store
}

func NewActivityHook(store *store.Store) *ActivityHook {
	return &ActivityHook{store: store}
}

func (h *ActivityHook) Name() string { return "activity" }

func (h *ActivityHook) AfterCommit(ctx context.Context, evt *models.SaleCompletedEvent, resp *CreateSaleResponse) error {
	details := fmt.Sprintf("ref=%s total=%s items=%d", evt.Reference, evt.Total.StringFixed(2), len(evt.Items))
	if resp.RewardCode != "" {
		details += " reward=" + resp.RewardCode
	}
	return h.store.InsertActivity(ctx, &models.ActivityLog{
		Actor:     evt.Cashier,
		Action:    "sale_completed",
		Entity:    "sale",
		EntityID:  evt.SaleID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
}

// EventHook publishes SaleCompleted.
type EventHook struct {
	publisher EventPublisher
}

func NewEventHook(publisher EventPublisher) *EventHook {
	return &EventHook{publisher: publisherOrNop(publisher)}
}

func (h *EventHook) Name() string { return "events" }

func (h *EventHook) AfterCommit(ctx context.Context, evt *models.SaleCompletedEvent, _ *CreateSaleResponse) error {
	return h.publisher.PublishSaleCompleted(ctx, evt)
}
