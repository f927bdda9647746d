package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSaleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := storetest.Product(t, f.store, "Paracetamol 500mg", "100.00", 10)

	resp, err := f.sales.CreateSale(ctx, "cashier1", &CreateSaleRequest{
		Items:          []LineRequest{{ProductID: p.ID, Quantity: 3}},
		PaymentMethod:  "cash",
		AmountTendered: dec("500"),
	})
	require.NoError(t, err)

	assert.True(t, resp.Subtotal.Equal(dec("300.00")))
	assert.True(t, resp.Tax.Equal(dec("36.00")))
	assert.True(t, resp.DiscountAmount.IsZero())
	assert.True(t, resp.Total.Equal(dec("336.00")))
	assert.True(t, resp.Change.Equal(dec("164.00")))
	assert.Regexp(t, regexp.MustCompile(`^POS-\d{8}-\d{6}-[0-9A-F]{6}$`), resp.SaleReference)

	assert.Equal(t, 7, storetest.Stock(t, f.store, p.ID))

	require.NotEmpty(t, resp.RewardCode)
	assert.Regexp(t, regexp.MustCompile(`^RW-[0-9A-F]{10}$`), resp.RewardCode)
	assert.Zero(t, resp.RewardPoints)
	require.NotNil(t, resp.RewardExpires)

	rc, err := f.store.GetRewardCode(ctx, resp.RewardCode)
	require.NoError(t, err)
	assert.Equal(t, resp.SaleReference, rc.SourceRef)
	assert.Equal(t, models.RewardSourcePOS, rc.SourceType)
	assert.False(t, rc.Redeemed)

	sale, items, err := f.sales.GetSale(ctx, resp.SaleID)
	require.NoError(t, err)
	assert.Equal(t, "cashier1", sale.Cashier)
	assert.Equal(t, "cash", sale.PaymentMethod)
	require.Len(t, items, 1)
	assert.Equal(t, "Paracetamol 500mg", items[0].Name)
	assert.True(t, items[0].LineTotal.Equal(dec("300.00")))

	activities, err := f.store.GetActivities(ctx, "sale", resp.SaleID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "sale_completed", activities[0].Action)

	require.Len(t, f.publisher.sales, 1)
	assert.True(t, f.publisher.sales[0].PreDiscountTotal.Equal(dec("336.00")))
	assert.Len(t, f.publisher.rewards, 1)
}

func TestCreateSaleRoundingWithDiscount(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.store, "Insulin pen", "1000.00", 5)
	pct := dec("20")

	resp, err := f.sales.CreateSale(context.Background(), "cashier1", &CreateSaleRequest{
		Items:           []LineRequest{{ProductID: p.ID, Quantity: 1}},
		AmountTendered:  dec("1000"),
		DiscountPercent: &pct,
	})
	require.NoError(t, err)

	assert.True(t, resp.Subtotal.Equal(dec("1000")))
	assert.True(t, resp.Tax.Equal(dec("120")))
	assert.True(t, resp.DiscountAmount.Equal(dec("224")))
	assert.True(t, resp.Total.Equal(dec("896")))
	assert.True(t, resp.Change.Equal(dec("104")))
	assert.Equal(t, int64(50), resp.RewardPoints, "points come from the pre-discount total of 1120")
}

func TestCreateSaleDiscountGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pct := dec("20")

	cheap := storetest.Product(t, f.store, "Vitamin C", "199.99", 5)
	_, err := f.sales.CreateSale(ctx, "cashier1", &CreateSaleRequest{
		Items:           []LineRequest{{ProductID: cheap.ID, Quantity: 1}},
		AmountTendered:  dec("500"),
		DiscountPercent: &pct,
	})
	requireKind(t, err, KindDiscountIneligible)
	assert.Equal(t, 5, storetest.Stock(t, f.store, cheap.ID))

	n, err := f.store.CountSales(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	exact := storetest.Product(t, f.store, "Multivitamins", "200.00", 5)
	resp, err := f.sales.CreateSale(ctx, "cashier1", &CreateSaleRequest{
		Items:           []LineRequest{{ProductID: exact.ID, Quantity: 1}},
		AmountTendered:  dec("500"),
		DiscountPercent: &pct,
	})
	require.NoError(t, err)
	assert.True(t, resp.DiscountAmount.Equal(dec("44.80")))
	assert.True(t, resp.Total.Equal(dec("179.20")))
}

func TestCreateSaleInvalidDiscount(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.store, "Vitamin C", "10.00", 5)
	pct := dec("150")

	_, err := f.sales.CreateSale(context.Background(), "cashier1", &CreateSaleRequest{
		Items:           []LineRequest{{ProductID: p.ID, Quantity: 1}},
		DiscountPercent: &pct,
	})
	requireKind(t, err, KindInvalidRequest)
	assert.Equal(t, 5, storetest.Stock(t, f.store, p.ID))
}

func TestCreateSaleAtomicOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := storetest.Product(t, f.store, "Cetirizine", "8.00", 10)
	scarce := storetest.Product(t, f.store, "Losartan", "15.00", 1)

	_, err := f.sell(t,
		LineRequest{ProductID: plenty.ID, Quantity: 2},
		LineRequest{ProductID: scarce.ID, Quantity: 3},
	)
	e := requireKind(t, err, KindInsufficientStock)
	assert.Equal(t, scarce.ID, e.ProductID)
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	assert.Equal(t, 10, storetest.Stock(t, f.store, plenty.ID))
	assert.Equal(t, 1, storetest.Stock(t, f.store, scarce.ID))
	n, err := f.store.CountSales(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.publisher.sales)
	assert.Empty(t, f.publisher.rewards)
}

func TestCreateSaleRejectsUnknownOrInactiveProducts(t *testing.T) {
	f := newFixture(t)

	_, err := f.sell(t, LineRequest{ProductID: 424242, Quantity: 1})
	e := requireKind(t, err, KindItemNotFound)
	assert.Equal(t, int64(424242), e.ProductID)

	inactive := &models.Product{
		Name: "Recalled syrup", SellingPrice: dec("50"), PiecesPerBox: 1, StockQuantity: 10, Active: false,
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), inactive))
	_, err = f.sell(t, LineRequest{ProductID: inactive.ID, Quantity: 1})
	requireKind(t, err, KindItemNotFound)
	assert.Equal(t, 10, storetest.Stock(t, f.store, inactive.ID))
}

func TestCreateSaleValidation(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.store, "Cetirizine", "8.00", 10)

	_, err := f.sell(t)
	requireKind(t, err, KindCartEmpty)

	_, err = f.sell(t, LineRequest{ProductID: p.ID, Quantity: 0})
	requireKind(t, err, KindInvalidRequest)

	_, err = f.sales.CreateSale(context.Background(), "", &CreateSaleRequest{
		Items: []LineRequest{{ProductID: p.ID, Quantity: 1}},
	})
	requireKind(t, err, KindInvalidRequest)

	assert.Equal(t, 10, storetest.Stock(t, f.store, p.ID))
}

func TestCreateSaleIgnoresClientPrices(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.store, "Amoxicillin", "100.00", 10)

	body := fmt.Sprintf(`{
		"items": [{"product_id": %d, "quantity": 2, "price": 0.01, "unit_price": 0.01}],
		"payment_method": "cash",
		"amount_tendered": 300,
		"total": 0.02
	}`, p.ID)

	var req CreateSaleRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	resp, err := f.sales.CreateSale(context.Background(), "cashier1", &req)
	require.NoError(t, err)
	assert.True(t, resp.Subtotal.Equal(dec("200")))
	assert.True(t, resp.Total.Equal(dec("224")))

	_, items, err := f.sales.GetSale(context.Background(), resp.SaleID)
	require.NoError(t, err)
	assert.True(t, items[0].UnitPrice.Equal(dec("100")))
}

func TestCreateSalePerPieceDeductsWholeBoxes(t *testing.T) {
	f := newFixture(t)
	p := &models.Product{
		Name: "Mefenamic acid 10s", SellingPrice: dec("100.00"), PiecesPerBox: 10, StockQuantity: 5, Active: true,
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))

	resp, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 12, PerPiece: true})
	require.NoError(t, err)

	assert.True(t, resp.Subtotal.Equal(dec("120.00")))
	assert.Equal(t, 3, storetest.Stock(t, f.store, p.ID))

	_, items, err := f.sales.GetSale(context.Background(), resp.SaleID)
	require.NoError(t, err)
	assert.True(t, items[0].PerPiece)
	assert.True(t, items[0].UnitPrice.Equal(dec("10.00")))
}

func TestCreateSaleRejectsOversizedQuantity(t *testing.T) {
	f := newFixture(t)
	p := &models.Product{
		Name: "Mefenamic acid 10s", SellingPrice: dec("100.00"), PiecesPerBox: 10, StockQuantity: 5, Active: true,
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))

	for _, qty := range []int{math.MaxInt - 5, math.MaxInt32, MaxLineQuantity + 1} {
		for _, perPiece := range []bool{true, false} {
			_, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: qty, PerPiece: perPiece})
			requireKind(t, err, KindInvalidRequest)
		}
	}
	assert.Equal(t, 5, storetest.Stock(t, f.store, p.ID))
	assert.Empty(t, f.publisher.rewards)
}

func TestStockUnitsNearIntLimit(t *testing.T) {
	p := &models.Product{PiecesPerBox: 10}

	assert.Equal(t, math.MaxInt/10+1, StockUnits(p, math.MaxInt-5, true))
	assert.Equal(t, 2, StockUnits(p, 11, true))
	assert.Equal(t, 1, StockUnits(p, 10, true))
	assert.Equal(t, 7, StockUnits(p, 7, false))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.store, "Face masks", "5.00", 5)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sales.CreateSale(context.Background(), "cashier1", &CreateSaleRequest{
				Items:          []LineRequest{{ProductID: p.ID, Quantity: 1}},
				AmountTendered: dec("10"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, buyers-5, rejected)
	assert.Equal(t, 0, storetest.Stock(t, f.store, p.ID))

	n, err := f.store.CountSales(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCreateSaleRetriesReferenceCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := storetest.Product(t, f.store, "Cetirizine", "10.00", 10)

	require.NoError(t, f.store.InTx(ctx, func(u store.Unit) error {
		return u.InsertSale(ctx, &models.Sale{
			Reference: "POS-TAKEN", PaymentMethod: "cash", Cashier: "x", CreatedAt: time.Now().UTC(),
		})
	}))

	calls := 0
	f.sales.newRef = func(at time.Time) string {
		calls++
		if calls < 3 {
			return "POS-TAKEN"
		}
		return NewSaleReference(at)
	}

	resp, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.NotEqual(t, "POS-TAKEN", resp.SaleReference)
	assert.Equal(t, 9, storetest.Stock(t, f.store, p.ID))
}

func TestCreateSaleDuplicateReferenceExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := storetest.Product(t, f.store, "Cetirizine", "10.00", 10)

	require.NoError(t, f.store.InTx(ctx, func(u store.Unit) error {
		return u.InsertSale(ctx, &models.Sale{
			Reference: "POS-TAKEN", PaymentMethod: "cash", Cashier: "x", CreatedAt: time.Now().UTC(),
		})
	}))
	f.sales.newRef = func(time.Time) string { return "POS-TAKEN" }

	_, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	requireKind(t, err, KindDuplicateReference)
	assert.Equal(t, 10, storetest.Stock(t, f.store, p.ID))
}

func TestRewardFailureDoesNotFailSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := storetest.Product(t, f.store, "Cetirizine", "10.00", 10)

	now := time.Now().UTC()
	require.NoError(t, f.store.CreateRewardCode(ctx, &models.RewardCode{
		Code: "RW-0000000000", SourceType: models.RewardSourcePOS, SourceRef: "seed",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	f.rewards.newCode = func() string { return "RW-0000000000" }

	resp, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.RewardCode)
	assert.Nil(t, resp.RewardExpires)
	assert.Equal(t, 9, storetest.Stock(t, f.store, p.ID))

	n, err := f.store.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type panickingHook struct{}

func (panickingHook) Name() string { return "panics" }

func (panickingHook) AfterCommit(context.Context, *models.SaleCompletedEvent, *CreateSaleResponse) error {
	panic("boom")
}

type failingHook struct{ called bool }

func (h *failingHook) Name() string { return "fails" }

func (h *failingHook) AfterCommit(context.Context, *models.SaleCompletedEvent, *CreateSaleResponse) error {
	h.called = true
	return errors.New("downstream unavailable")
}

func TestHookFailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.store, "Cetirizine", "10.00", 10)

	last := &failingHook{}
	f.sales = NewSaleService(f.store, f.policies, panickingHook{}, &failingHook{}, f.rewards, last)

	resp, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RewardCode, "hooks after a failing one still run")
	assert.True(t, last.called)
}

func TestSaleUsesInvalidatedSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := storetest.Product(t, f.store, "Cetirizine", "100.00", 10)

	_, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.store.PutSetting(ctx, "tax_rate", "0", time.Now().UTC()))

	resp, err := f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, resp.Tax.Equal(dec("12")), "cached policy stays in effect until invalidated")

	require.NoError(t, f.policies.Invalidate(ctx))
	resp, err = f.sell(t, LineRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, resp.Tax.IsZero())
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(100)))
}
