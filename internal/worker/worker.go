package worker

import (
	"context"
	"sync"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/broker"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/service"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"go.uber.org/zap"
)

// AutoCanceller is the reclaim operation run on every tick
type AutoCanceller interface {
	AutoCancelStale(ctx context.Context) (*service.ReclaimResult, error)
}

// ReclaimWorker periodically cancels abandoned online orders
type ReclaimWorker struct {
	reclaimer AutoCanceller
	interval  time.Duration
	logger    *zap.Logger

	stop chan struct{}
	once sync.Once
}

// NewReclaimWorker creates a reclaim worker ticking every interval
func NewReclaimWorker(reclaimer AutoCanceller, interval time.Duration) *ReclaimWorker {
	return &ReclaimWorker{
		reclaimer: reclaimer,
		interval:  interval,
		logger:    util.GetLogger(),
		stop:      make(chan struct{}),
	}
}

// Start runs until ctx is cancelled or Stop is called
func (w *ReclaimWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reclaim worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReclaimWorker) runOnce(ctx context.Context) {
	result, err := w.reclaimer.AutoCancelStale(ctx)
	if err != nil {
		w.logger.Error("Reclaim run failed", zap.Error(err))
		return
	}
	if result.Skipped || result.CancelledCount+result.FailedCount == 0 {
		return
	}
	w.logger.Info("Reclaim run finished",
		zap.Int("cancelled", result.CancelledCount),
		zap.Int("items_restored", result.StockRestoredItems),
		zap.Int("failed", result.FailedCount))
}

// Stop stops the worker
func (w *ReclaimWorker) Stop() {
	w.logger.Info("Stopping reclaim worker...")
	w.once.Do(func() { close(w.stop) })
}

// ReceivingWorker applies purchase-order receipts announced on the event bus
type ReceivingWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewReceivingWorker creates a new receiving worker
func NewReceivingWorker(consumer *broker.Consumer, purchases *service.PurchaseService) *ReceivingWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPurchaseOrderReceived(purchases.HandlePurchaseOrderReceived)

	return &ReceivingWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *ReceivingWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting receiving worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReceivingWorker) Stop() error {
	w.logger.Info("Stopping receiving worker...")
	return w.consumer.Close()
}
