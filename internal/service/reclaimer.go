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

const (
	reclaimLockKey = "abandoned-order-reclaimer"
	reclaimLockTTL = 5 * time.Minute
	reclaimActor   = "system:reclaimer"
)

// Locker serializes sweeps across replicas. An empty token means another
// holder has the lock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// ReclaimResult summarizes one sweep
type ReclaimResult struct {
	CancelledCount     int  `json:"cancelled_count"`
	StockRestoredItems int  `json:"stock_restored_items"`
	FailedCount        int  `json:"failed_count"`
	Skipped            bool `json:"skipped,omitempty"`
}

// Reclaimer cancels Pending orders that were never picked up and returns
// their reserved stock.
type Reclaimer struct {
	store     *store.Store
	policies  PolicySource
	locker    Locker
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewReclaimer creates a reclaimer. locker may be nil for single-replica
// deployments.
func NewReclaimer(store *store.Store, policies PolicySource, locker Locker, publisher EventPublisher) *Reclaimer {
	return &Reclaimer{
		store:     store,
		policies:  policies,
		locker:    locker,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// AutoCancel cancels up to one batch of Pending orders older than threshold,
// oldest first. A zero threshold takes every Pending order. Each order is its
// own unit of work; a failure is counted and the sweep moves on.
func (r *Reclaimer) AutoCancel(ctx context.Context, threshold time.Duration) (*ReclaimResult, error) {
	ctx, span := util.StartSpan(ctx, "Reclaimer.AutoCancel")
	defer span.End()

	if threshold < 0 {
		return nil, newError(KindInvalidRequest, "threshold cannot be negative")
	}
	return r.sweep(ctx, &threshold)
}

// AutoCancelStale is AutoCancel with the configured threshold.
func (r *Reclaimer) AutoCancelStale(ctx context.Context) (*ReclaimResult, error) {
	ctx, span := util.StartSpan(ctx, "Reclaimer.AutoCancelStale")
	defer span.End()

	return r.sweep(ctx, nil)
}

// sweep runs one batch. A nil threshold means the configured one.
func (r *Reclaimer) sweep(ctx context.Context, requested *time.Duration) (*ReclaimResult, error) {

	start := time.Now()
	defer func() { util.ReclaimDuration.Observe(time.Since(start).Seconds()) }()

	if r.locker != nil {
		token, err := r.locker.AcquireLock(ctx, reclaimLockKey, reclaimLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire reclaimer lock: %w", err)
		}
		if token == "" {
			r.logger.Info("Reclaimer sweep already running elsewhere, skipping")
			return &ReclaimResult{Skipped: true}, nil
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.Background(), reclaimLockKey, token); err != nil {
				r.logger.Warn("Failed to release reclaimer lock", zap.Error(err))
			}
		}()
	}

	policy, err := r.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	threshold := policy.Reclaim.Threshold
	if requested != nil {
		threshold = *requested
	}

	now := r.now().UTC()
	cutoff := now.Add(-threshold)
	ids, err := r.store.ListStalePendingOrders(ctx, cutoff, policy.Reclaim.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}

	reason := fmt.Sprintf("auto-cancelled after %s pending", threshold)
	result := &ReclaimResult{}

	for _, id := range ids {
		var (
			cancelled bool
			items     []models.OrderItem
		)
		err := r.store.InTx(ctx, func(u store.Unit) error {
			var err error
			cancelled, items, err = cancelInUnit(ctx, u, id,
				[]string{models.OrderStatusPending}, reclaimActor, reason, now)
			return err
		})
		if err != nil {
			result.FailedCount++
			util.ReclaimFailedTotal.Inc()
			r.logger.Error("Failed to reclaim order", zap.Int64("order_id", id), zap.Error(err))
			continue
		}
		if !cancelled {
			continue
		}

		result.CancelledCount++
		result.StockRestoredItems += len(items)
		util.OrdersCancelledTotal.WithLabelValues("reclaimer").Inc()
		publishCancelled(ctx, r.publisher, r.logger, id, reason, items, now)
	}

	r.logger.Info("Reclaimer sweep finished",
		zap.Duration("threshold", threshold),
		zap.Int("candidates", len(ids)),
		zap.Int("cancelled", result.CancelledCount),
		zap.Int("items_restored", result.StockRestoredItems),
		zap.Int("failed", result.FailedCount))
	return result, nil
}
