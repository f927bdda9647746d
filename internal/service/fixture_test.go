package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/config"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/settings"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *store.Store
	policies  *settings.Provider
	publisher *recordingPublisher
	rewards   *RewardIssuer
	sales     *SaleService
	orders    *OrderService
	reclaimer *Reclaimer
	purchases *PurchaseService
}

func businessConfig() config.BusinessConfig {
	return config.BusinessConfig{
		TaxRate:               decimal.RequireFromString("0.12"),
		DiscountTiers:         config.ParseDiscountTiers("20:200"),
		RewardBlock:           decimal.NewFromInt(500),
		RewardPointsPerBlk:    25,
		RewardValidity:        30 * 24 * time.Hour,
		ReclaimThresholdHours: 48,
		ReclaimBatchSize:      100,
		SettingsCacheTTL:      time.Minute,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := storetest.New(t)
	policies := settings.NewProvider(st, settings.NewMemoryCache(time.Minute), businessConfig())
	pub := &recordingPublisher{}
	rewards := NewRewardIssuer(st, policies, pub)

	return &fixture{
		store:     st,
		policies:  policies,
		publisher: pub,
		rewards:   rewards,
		sales:     NewSaleService(st, policies, rewards, NewActivityHook(st), NewEventHook(pub)),
		orders:    NewOrderService(st, policies, pub),
		reclaimer: NewReclaimer(st, policies, nil, pub),
		purchases: NewPurchaseService(st),
	}
}

func (f *fixture) sell(t *testing.T, lines ...LineRequest) (*CreateSaleResponse, error) {
	t.Helper()
	return f.sales.CreateSale(context.Background(), "cashier1", &CreateSaleRequest{
		Items:          lines,
		PaymentMethod:  "cash",
		AmountTendered: decimal.NewFromInt(5000),
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu        sync.Mutex
	sales     []*models.SaleCompletedEvent
	rewards   []*models.RewardIssuedEvent
	placed    []*models.OrderPlacedEvent
	cancelled []*models.OrderCancelledEvent
}

func (p *recordingPublisher) PublishSaleCompleted(_ context.Context, e *models.SaleCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, e)
	return nil
}

func (p *recordingPublisher) PublishRewardIssued(_ context.Context, e *models.RewardIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rewards = append(p.rewards, e)
	return nil
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return nil
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	require.Equal(t, kind, e.Kind, "unexpected kind: %v", err)
	return e
}
