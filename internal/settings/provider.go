// Package settings resolves the business policy in effect: configured
// defaults overlaid with rows from the settings table, cached for a TTL.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/config"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/pricing"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Keys of the settings table that override configured defaults.
const (
	KeyTaxRate              = "tax_rate"
	KeyDiscountTiers        = "discount_tiers"
	KeyRewardBlockAmount    = "reward_block_amount"
	KeyRewardPointsPerBlock = "reward_points_per_block"
	KeyRewardValidityDays   = "reward_validity_days"
	KeyReclaimThresholdHrs  = "reclaim_threshold_hours"
	KeyReclaimBatchSize     = "reclaim_batch_size"
)

const cacheKey = "settings:snapshot"

// Source loads the raw stored overrides.
type Source interface {
	GetSettings(ctx context.Context) (map[string]string, error)
}

// RewardPolicy governs reward code issuance.
type RewardPolicy struct {
	BlockAmount    decimal.Decimal
	PointsPerBlock int64
	Validity       time.Duration
}

// ReclaimPolicy governs the abandoned-order sweep.
type ReclaimPolicy struct {
	Threshold time.Duration
	BatchSize int
}

// Policy is a resolved snapshot of every business rule.
type Policy struct {
	Pricing pricing.Policy
	Reward  RewardPolicy
	Reclaim ReclaimPolicy
}

// Provider hands out the current Policy.
type Provider struct {
	source   Source
	cache    Cache
	ttl      time.Duration
	defaults config.BusinessConfig
	logger   *zap.Logger
}

func NewProvider(source Source, cache Cache, defaults config.BusinessConfig) *Provider {
	if cache == nil {
		cache = NewMemoryCache(defaults.SettingsCacheTTL)
	}
	return &Provider{
		source:   source,
		cache:    cache,
		ttl:      defaults.SettingsCacheTTL,
		defaults: defaults,
		logger:   util.GetLogger(),
	}
}

// Current returns the policy in effect, reading through the cache.
func (p *Provider) Current(ctx context.Context) (*Policy, error) {
	raw, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return p.resolve(raw), nil
}

// Invalidate drops the cached snapshot so the next read hits the store.
func (p *Provider) Invalidate(ctx context.Context) error {
	if err := p.cache.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("failed to invalidate settings cache: %w", err)
	}
	p.logger.Info("Settings cache invalidated")
	return nil
}

func (p *Provider) load(ctx context.Context) (map[string]string, error) {
	cached, ok, err := p.cache.Get(ctx, cacheKey)
	if err != nil {
		p.logger.Warn("Settings cache read failed", zap.Error(err))
	} else if ok {
		var raw map[string]string
		if err := json.Unmarshal([]byte(cached), &raw); err == nil {
			return raw, nil
		}
		p.logger.Warn("Discarding corrupt settings snapshot")
	}

	raw, err := p.source.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if encoded, err := json.Marshal(raw); err == nil {
		if err := p.cache.Set(ctx, cacheKey, string(encoded), p.ttl); err != nil {
			p.logger.Warn("Settings cache write failed", zap.Error(err))
		}
	}
	return raw, nil
}

func (p *Provider) resolve(raw map[string]string) *Policy {
	d := p.defaults

	policy := &Policy{
		Pricing: pricing.Policy{
			TaxRate: p.decimalSetting(raw, KeyTaxRate, d.TaxRate),
			Tiers:   toPricingTiers(d.DiscountTiers),
		},
		Reward: RewardPolicy{
			BlockAmount:    p.decimalSetting(raw, KeyRewardBlockAmount, d.RewardBlock),
			PointsPerBlock: int64(p.intSetting(raw, KeyRewardPointsPerBlock, int(d.RewardPointsPerBlk))),
			Validity:       d.RewardValidity,
		},
		Reclaim: ReclaimPolicy{
			Threshold: time.Duration(d.ReclaimThresholdHours) * time.Hour,
			BatchSize: p.intSetting(raw, KeyReclaimBatchSize, d.ReclaimBatchSize),
		},
	}

	if v, ok := raw[KeyDiscountTiers]; ok {
		policy.Pricing.Tiers = toPricingTiers(config.ParseDiscountTiers(v))
	}
	if days, ok := p.lookupInt(raw, KeyRewardValidityDays); ok {
		policy.Reward.Validity = time.Duration(days) * 24 * time.Hour
	}
	if hours, ok := p.lookupInt(raw, KeyReclaimThresholdHrs); ok {
		policy.Reclaim.Threshold = time.Duration(hours) * time.Hour
	}
	return policy
}

func (p *Provider) decimalSetting(raw map[string]string, key string, def decimal.Decimal) decimal.Decimal {
	v, ok := raw[key]
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		p.logger.Warn("Ignoring invalid setting", zap.String("key", key), zap.String("value", v))
		return def
	}
	return d
}

func (p *Provider) intSetting(raw map[string]string, key string, def int) int {
	if n, ok := p.lookupInt(raw, key); ok {
		return n
	}
	return def
}

func (p *Provider) lookupInt(raw map[string]string, key string) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.logger.Warn("Ignoring invalid setting", zap.String("key", key), zap.String("value", v))
		return 0, false
	}
	return n, true
}

func toPricingTiers(tiers []config.DiscountTier) []pricing.Tier {
	out := make([]pricing.Tier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, pricing.Tier{Percent: t.Percent, MinSubtotal: t.MinSubtotal})
	}
	return out
}
