package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
)

// CreateRewardCode inserts a newly minted reward code
func (s *Store) CreateRewardCode(ctx context.Context, rc *models.RewardCode) error {
	query := `
		INSERT INTO reward_codes (code, source_type, source_ref, points, redeemed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := sqlxGet(ctx, s.db, &rc.ID, query,
		rc.Code, rc.SourceType, rc.SourceRef, rc.Points, false, rc.CreatedAt, rc.ExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("reward code: %w", ErrDuplicate)
	}
	return err
}

// GetRewardCode retrieves a reward code
func (u *unit) GetRewardCode(ctx context.Context, code string) (*models.RewardCode, error) {
	var rc models.RewardCode
	err := sqlxGet(ctx, u.q, &rc, "SELECT * FROM reward_codes WHERE code = ?", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reward code %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// RedeemRewardCode claims an unredeemed, unexpired code. It reports false
// when the code is unknown, already redeemed or expired.
func (u *unit) RedeemRewardCode(ctx context.Context, code, redeemer string, at time.Time) (bool, error) {
	res, err := u.q.ExecContext(ctx, u.q.Rebind(`
		UPDATE reward_codes SET redeemed = ?, redeemed_by = ?, redeemed_at = ?
		WHERE code = ? AND redeemed = ? AND expires_at > ?`),
		true, redeemer, at, code, false, at)
	if err != nil {
		return false, fmt.Errorf("failed to redeem reward code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// AddLoyaltyPoints credits points to a holder, creating the account on first use
func (u *unit) AddLoyaltyPoints(ctx context.Context, holder string, points int64, at time.Time) error {
	_, err := u.q.ExecContext(ctx, u.q.Rebind(`
		INSERT INTO loyalty_accounts (holder, points, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (holder) DO UPDATE SET points = loyalty_accounts.points + excluded.points,
			updated_at = excluded.updated_at`),
		holder, points, at)
	if err != nil {
		return fmt.Errorf("failed to credit loyalty points: %w", err)
	}
	return nil
}

// GetRewardCode retrieves a reward code outside of any transaction
func (s *Store) GetRewardCode(ctx context.Context, code string) (*models.RewardCode, error) {
	return s.pool().GetRewardCode(ctx, code)
}

// GetLoyaltyAccount retrieves a holder's point balance
func (s *Store) GetLoyaltyAccount(ctx context.Context, holder string) (*models.LoyaltyAccount, error) {
	var acct models.LoyaltyAccount
	err := sqlxGet(ctx, s.db, &acct, "SELECT * FROM loyalty_accounts WHERE holder = ?", holder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loyalty account %s: %w", holder, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
