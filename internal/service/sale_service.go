package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/models"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/pricing"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/settings"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const referenceAttempts = 3

// PolicySource resolves the business rules in effect.
type PolicySource interface {
	Current(ctx context.Context) (*settings.Policy, error)
}

// SaleService records POS sales
type SaleService struct {
	store    *store.Store
	policies PolicySource
	hooks    []SaleHook
	now      func() time.Time
	newRef   func(time.Time) string
	logger   *zap.Logger
}

// NewSaleService creates a sale service. Hooks run after every committed
// sale in the order given.
func NewSaleService(store *store.Store, policies PolicySource, hooks ...SaleHook) *SaleService {
	return &SaleService{
		store:    store,
		policies: policies,
		hooks:    hooks,
		now:      time.Now,
		newRef:   NewSaleReference,
		logger:   util.GetLogger(),
	}
}

// CreateSaleRequest is the cart submitted at the counter
type CreateSaleRequest struct {
	Items           []LineRequest    `json:"items"`
	PaymentMethod   string           `json:"payment_method"`
	AmountTendered  decimal.Decimal  `json:"amount_tendered"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
}

// CreateSaleResponse is the receipt returned after commit
type CreateSaleResponse struct {
	SaleID         int64           `json:"sale_id"`
	SaleReference  string          `json:"sale_reference"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	Change         decimal.Decimal `json:"change"`
	RewardCode     string          `json:"reward_code,omitempty"`
	RewardPoints   int64           `json:"reward_points,omitempty"`
	RewardExpires  *time.Time      `json:"reward_expires,omitempty"`
}

// NewSaleReference formats POS-YYYYMMDD-HHMMSS-XXXXXX from a UTC timestamp
// and a random suffix.
func NewSaleReference(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("POS-%s-%s", at.UTC().Format("20060102-150405"), suffix)
}

// CreateSale verifies, prices and records a sale for the given cashier.
// Stock decrements and the sale rows commit together or not at all.
func (s *SaleService) CreateSale(ctx context.Context, cashier string, req *CreateSaleRequest) (*CreateSaleResponse, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	start := time.Now()
	defer func() { util.SaleLatency.Observe(time.Since(start).Seconds()) }()

	resp, evt, err := s.createSale(ctx, cashier, req)
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = "Internal"
		}
		util.SalesFailedTotal.WithLabelValues(string(kind)).Inc()
		util.RecordError(span, err)
		return nil, err
	}

	util.SalesCompletedTotal.Inc()
	util.SaleAmountTotal.Add(resp.Total.InexactFloat64())
	s.logger.Info("Sale completed",
		zap.Int64("sale_id", resp.SaleID),
		zap.String("reference", resp.SaleReference),
		zap.String("cashier", cashier),
		zap.String("total", resp.Total.StringFixed(2)))

	runHooks(ctx, s.logger, s.hooks, evt, resp)
	return resp, nil
}

func (s *SaleService) createSale(ctx context.Context, cashier string, req *CreateSaleRequest) (*CreateSaleResponse, *models.SaleCompletedEvent, error) {
	if strings.TrimSpace(cashier) == "" {
		return nil, nil, newError(KindInvalidRequest, "cashier identity is required")
	}
	if req == nil || len(req.Items) == 0 {
		return nil, nil, newError(KindCartEmpty, "cart is empty")
	}
	if req.AmountTendered.IsNegative() {
		return nil, nil, newError(KindInvalidRequest, "amount tendered cannot be negative")
	}

	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		resp *CreateSaleResponse
		evt  *models.SaleCompletedEvent
	)
	err = retryDuplicate(ctx, func() error {
		var err error
		resp, evt, err = s.recordSale(ctx, cashier, req, policy.Pricing)
		if errors.Is(err, store.ErrDuplicate) {
			util.SaleReferenceRetries.Inc()
			s.logger.Warn("Sale reference collision, retrying", zap.Error(err))
		}
		return err
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil, &Error{Kind: KindDuplicateReference, Message: "could not allocate a unique sale reference", Err: err}
	}
	if err != nil {
		return nil, nil, err
	}
	return resp, evt, nil
}

// retryDuplicate reruns operation with a short backoff while it fails with
// store.ErrDuplicate, up to referenceAttempts in total. Other errors stop it.
func retryDuplicate(ctx context.Context, operation func() error) error {
	op := func() error {
		err := operation()
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, referenceAttempts-1), ctx))
}

// recordSale runs one attempt of the atomic unit with a fresh reference.
func (s *SaleService) recordSale(ctx context.Context, cashier string, req *CreateSaleRequest, policy pricing.Policy) (*CreateSaleResponse, *models.SaleCompletedEvent, error) {
	now := s.now().UTC()
	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = "cash"
	}

	var (
		sale  *models.Sale
		lines []VerifiedLine
		bd    *pricing.Breakdown
	)

	err := s.store.InTx(ctx, func(u store.Unit) error {
		var (
			subtotal decimal.Decimal
			err      error
		)
		lines, subtotal, err = VerifyLines(ctx, u, req.Items)
		if err != nil {
			return err
		}

		bd, err = policy.Calculate(subtotal, req.DiscountPercent, req.AmountTendered)
		if err != nil {
			return pricingError(err)
		}

		for _, line := range lines {
			ok, err := u.DecrementStock(ctx, line.Product.ID, line.StockUnits, now)
			if err != nil {
				return err
			}
			if !ok {
				util.StockDecrementRejected.Inc()
				return productError(KindInsufficientStock, line.Product.ID,
					"insufficient stock for %s", line.Product.Name)
			}
		}

		sale = &models.Sale{
			Reference:       s.newRef(now),
			Subtotal:        bd.Subtotal,
			TaxAmount:       bd.Tax,
			DiscountPercent: bd.DiscountPercent,
			DiscountAmount:  bd.DiscountAmount,
			Total:           bd.Total,
			PaymentMethod:   paymentMethod,
			AmountTendered:  bd.Tendered,
			ChangeAmount:    bd.Change,
			Cashier:         cashier,
			CreatedAt:       now,
		}
		if err := u.InsertSale(ctx, sale); err != nil {
			return err
		}

		items := make([]models.SaleItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.SaleItem{
				ProductID: line.Product.ID,
				Name:      line.Product.Name,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
				PerPiece:  line.PerPiece,
				LineTotal: line.LineTotal,
			})
		}
		return u.InsertSaleItems(ctx, sale.ID, items)
	})
	if err != nil {
		return nil, nil, err
	}

	resp := &CreateSaleResponse{
		SaleID:         sale.ID,
		SaleReference:  sale.Reference,
		Subtotal:       bd.Subtotal,
		Tax:            bd.Tax,
		DiscountAmount: bd.DiscountAmount,
		Total:          bd.Total,
		Change:         bd.Change,
	}

	evtItems := make([]models.LineData, 0, len(lines))
	for _, line := range lines {
		evtItems = append(evtItems, models.LineData{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	evt := &models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeSaleCompleted,
			Timestamp: now,
		},
		SaleID:           sale.ID,
		Reference:        sale.Reference,
		Cashier:          cashier,
		PreDiscountTotal: bd.BeforeDiscount,
		Total:            bd.Total,
		Items:            evtItems,
	}
	return resp, evt, nil
}

// GetSale retrieves a recorded sale with its lines
func (s *SaleService) GetSale(ctx context.Context, id int64) (*models.Sale, []models.SaleItem, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.GetSale")
	defer span.End()

	sale, err := s.store.GetSaleByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, newError(KindItemNotFound, "sale %d not found", id)
	}
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetSaleItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sale, items, nil
}

func pricingError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrDiscountIneligible):
		return &Error{Kind: KindDiscountIneligible, Message: err.Error()}
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return &Error{Kind: KindInvalidRequest, Message: err.Error()}
	default:
		return err
	}
}
