package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiscountTiers(t *testing.T) {
	tiers := ParseDiscountTiers("20:200, 5:0,bogus,x:1,10:y")
	require.Len(t, tiers, 2)

	assert.True(t, tiers[0].Percent.Equal(decimal.NewFromInt(20)))
	assert.True(t, tiers[0].MinSubtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, tiers[1].Percent.Equal(decimal.NewFromInt(5)))
	assert.True(t, tiers[1].MinSubtotal.IsZero())

	assert.Empty(t, ParseDiscountTiers(""))
}

func TestLoadBusinessDefaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("DISCOUNT_TIERS", "")
	t.Setenv("REWARD_VALIDITY_DAYS", "")

	cfg := Load()

	assert.True(t, cfg.Business.TaxRate.Equal(decimal.RequireFromString("0.12")))
	require.Len(t, cfg.Business.DiscountTiers, 1)
	assert.Equal(t, 30*24*time.Hour, cfg.Business.RewardValidity)
	assert.Equal(t, "X-Authenticated-User", cfg.Server.PrincipalHeader)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.1")
	t.Setenv("RECLAIM_INTERVAL", "1m")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg := Load()

	assert.True(t, cfg.Business.TaxRate.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, time.Minute, cfg.Business.ReclaimInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestGetDecimalFallsBack(t *testing.T) {
	t.Setenv("SOME_RATE", "abc")
	assert.True(t, getDecimal("SOME_RATE", "0.12").Equal(decimal.RequireFromString("0.12")))
}
