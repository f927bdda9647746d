package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRewardPointsAndExpiry(t *testing.T) {
	f := newFixture(t)
	issuedAt := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	f.rewards.now = func() time.Time { return issuedAt }

	rc, err := f.rewards.Issue(context.Background(), models.RewardSourceOnline, "ORD-1", dec("1499.99"))
	require.NoError(t, err)

	assert.Equal(t, int64(50), rc.Points)
	assert.True(t, rc.ExpiresAt.Equal(issuedAt.Add(30*24*time.Hour)))
	assert.Equal(t, models.RewardSourceOnline, rc.SourceType)
	assert.Equal(t, "ORD-1", rc.SourceRef)
}

func TestRewardCodesAreUnique(t *testing.T) {
	f := newFixture(t)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		rc, err := f.rewards.Issue(context.Background(), models.RewardSourcePOS, "POS-X", dec("10"))
		require.NoError(t, err)
		require.False(t, seen[rc.Code], "duplicate code %s", rc.Code)
		seen[rc.Code] = true
	}
}

func TestIssueRetriesCodeCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.rewards.Issue(ctx, models.RewardSourcePOS, "POS-A", dec("10"))
	require.NoError(t, err)

	calls := 0
	f.rewards.newCode = func() string {
		calls++
		if calls == 1 {
			return first.Code
		}
		return NewRewardCode()
	}

	second, err := f.rewards.Issue(ctx, models.RewardSourcePOS, "POS-B", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotEqual(t, first.Code, second.Code)
}

func TestRedeemRewardOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rc, err := f.rewards.Issue(ctx, models.RewardSourcePOS, "POS-A", dec("1000"))
	require.NoError(t, err)
	require.Equal(t, int64(50), rc.Points)

	redeemed, err := f.rewards.Redeem(ctx, rc.Code, "maria")
	require.NoError(t, err)
	assert.Equal(t, rc.Code, redeemed.Code)

	acct, err := f.store.GetLoyaltyAccount(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acct.Points)

	_, err = f.rewards.Redeem(ctx, rc.Code, "juan")
	requireKind(t, err, KindRewardAlreadyRedeemed)

	acct, err = f.store.GetLoyaltyAccount(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acct.Points, "second redemption must not credit again")

	stored, err := f.store.GetRewardCode(ctx, rc.Code)
	require.NoError(t, err)
	require.NotNil(t, stored.RedeemedBy)
	assert.Equal(t, "maria", *stored.RedeemedBy)
}

func TestRedeemLowercaseInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rc, err := f.rewards.Issue(ctx, models.RewardSourcePOS, "POS-A", dec("10"))
	require.NoError(t, err)

	_, err = f.rewards.Redeem(ctx, "  "+strings.ToLower(rc.Code)+" ", "maria")
	require.NoError(t, err)
}

func TestRedeemRewardExpiredOrUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issuedAt := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	f.rewards.now = func() time.Time { return issuedAt }

	rc, err := f.rewards.Issue(ctx, models.RewardSourcePOS, "POS-A", dec("1000"))
	require.NoError(t, err)

	f.rewards.now = func() time.Time { return issuedAt.Add(31 * 24 * time.Hour) }
	_, err = f.rewards.Redeem(ctx, rc.Code, "maria")
	requireKind(t, err, KindRewardExpired)

	_, err = f.rewards.Redeem(ctx, "RW-FFFFFFFFFF", "maria")
	requireKind(t, err, KindRewardNotFound)

	_, err = f.rewards.Redeem(ctx, "", "maria")
	requireKind(t, err, KindInvalidRequest)

	stored, err := f.store.GetRewardCode(ctx, rc.Code)
	require.NoError(t, err)
	assert.False(t, stored.Redeemed)
}
