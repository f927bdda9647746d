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

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const rewardCodeAttempts = 5

// NewRewardCode returns RW- followed by ten uppercase hex characters drawn
// from a random UUID.
func NewRewardCode() string {
	return "RW-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
}

// RewardIssuer mints and redeems loyalty reward codes
type RewardIssuer struct {
	store     *store.Store
	policies  PolicySource
	publisher EventPublisher
	now       func() time.Time
	newCode   func() string
	logger    *zap.Logger
}

func NewRewardIssuer(store *store.Store, policies PolicySource, publisher EventPublisher) *RewardIssuer {
	return &RewardIssuer{
		store:     store,
		policies:  policies,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
		newCode:   NewRewardCode,
		logger:    util.GetLogger(),
	}
}

func (r *RewardIssuer) Name() string { return "reward" }

// AfterCommit issues the reward for a committed POS sale and attaches it to
// the receipt. On failure the receipt is left without reward fields.
func (r *RewardIssuer) AfterCommit(ctx context.Context, evt *models.SaleCompletedEvent, resp *CreateSaleResponse) error {
	rc, err := r.Issue(ctx, models.RewardSourcePOS, evt.Reference, evt.PreDiscountTotal)
	if err != nil {
		return err
	}
	resp.RewardCode = rc.Code
	resp.RewardPoints = rc.Points
	expires := rc.ExpiresAt
	resp.RewardExpires = &expires
	return nil
}

// Issue mints a single-use code worth points for every full block of
// preDiscountTotal.
func (r *RewardIssuer) Issue(ctx context.Context, sourceType, sourceRef string, preDiscountTotal decimal.Decimal) (*models.RewardCode, error) {
	ctx, span := util.StartSpan(ctx, "RewardIssuer.Issue")
	defer span.End()

	rc, err := r.issue(ctx, sourceType, sourceRef, preDiscountTotal)
	if err != nil {
		util.RewardsFailedTotal.Inc()
		util.RecordError(span, err)
		return nil, &Error{Kind: KindRewardIssuanceFailed, Message: "reward issuance failed for " + sourceRef, Err: err}
	}

	util.RewardsIssuedTotal.Inc()
	r.logger.Info("Reward code issued",
		zap.String("source_ref", sourceRef),
		zap.Int64("points", rc.Points),
		zap.Time("expires_at", rc.ExpiresAt))

	if err := r.publisher.PublishRewardIssued(ctx, &models.RewardIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeRewardIssued,
			Timestamp: rc.CreatedAt,
		},
		Code:      rc.Code,
		SourceRef: rc.SourceRef,
		Points:    rc.Points,
		ExpiresAt: rc.ExpiresAt,
	}); err != nil {
		r.logger.Error("Failed to publish RewardIssued event", zap.Error(err))
	}
	return rc, nil
}

func (r *RewardIssuer) issue(ctx context.Context, sourceType, sourceRef string, preDiscountTotal decimal.Decimal) (*models.RewardCode, error) {
	policy, err := r.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	rc := &models.RewardCode{
		SourceType: sourceType,
		SourceRef:  sourceRef,
		Points:     pricing.RewardPoints(preDiscountTotal, policy.Reward.BlockAmount, policy.Reward.PointsPerBlock),
		CreatedAt:  now,
		ExpiresAt:  now.Add(policy.Reward.Validity),
	}

	operation := func() error {
		rc.Code = r.newCode()
		err := r.store.CreateRewardCode(ctx, rc)
		if errors.Is(err, store.ErrDuplicate) {
			r.logger.Warn("Reward code collision, retrying")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, rewardCodeAttempts-1)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("failed to store reward code: %w", err)
	}
	return rc, nil
}

// Redeem claims a code for redeemer and credits its points to the
// redeemer's loyalty balance. A code can be redeemed at most once.
func (r *RewardIssuer) Redeem(ctx context.Context, code, redeemer string) (*models.RewardCode, error) {
	ctx, span := util.StartSpan(ctx, "RewardIssuer.Redeem")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || strings.TrimSpace(redeemer) == "" {
		return nil, newError(KindInvalidRequest, "code and redeemer are required")
	}

	now := r.now().UTC()
	var redeemed *models.RewardCode

	err := r.store.InTx(ctx, func(u store.Unit) error {
		ok, err := u.RedeemRewardCode(ctx, code, redeemer, now)
		if err != nil {
			return err
		}

		rc, err := u.GetRewardCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindRewardNotFound, "reward code %s not found", code)
		}
		if err != nil {
			return err
		}

		if !ok {
			if rc.Redeemed {
				return newError(KindRewardAlreadyRedeemed, "reward code %s was already redeemed", code)
			}
			return newError(KindRewardExpired, "reward code %s expired on %s", code, rc.ExpiresAt.Format("2006-01-02"))
		}

		if err := u.AddLoyaltyPoints(ctx, redeemer, rc.Points, now); err != nil {
			return err
		}
		redeemed = rc
		return u.InsertActivity(ctx, &models.ActivityLog{
			Actor:     redeemer,
			Action:    "reward_redeemed",
			Entity:    "reward_code",
			EntityID:  rc.ID,
			Details:   fmt.Sprintf("code=%s points=%d", rc.Code, rc.Points),
			CreatedAt: now,
		})
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.RewardsRedeemedTotal.Inc()
	r.logger.Info("Reward code redeemed", zap.String("code", code), zap.String("redeemer", redeemer))
	return redeemed, nil
}
