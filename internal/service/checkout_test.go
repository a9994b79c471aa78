package service

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PromotionGo/internal/domain"
	"github.com/utafrali/PromotionGo/internal/event"
	"github.com/utafrali/PromotionGo/internal/pricing"
	apperrors "github.com/utafrali/PromotionGo/pkg/errors"
)

type checkoutFixture struct {
	pool        pgxmock.PgxPoolIface
	catalog     *mockCatalogRepository
	orders      *mockOrderRepository
	discounts   *mockDiscountRepository
	campaigns   *mockCampaignRepository
	redemptions *mockRedemptionRepository
	carts       *mockCartRepository
	svc         *CheckoutService
}

func newCheckoutFixture(t *testing.T, snap *pricing.Snapshot) *checkoutFixture {
	t.Helper()

	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	f := &checkoutFixture{
		pool:        pool,
		catalog:     new(mockCatalogRepository),
		orders:      new(mockOrderRepository),
		discounts:   new(mockDiscountRepository),
		campaigns:   new(mockCampaignRepository),
		redemptions: new(mockRedemptionRepository),
		carts:       new(mockCartRepository),
	}

	logger := newTestLogger()
	ledger := NewRedemptionLedger(pool, f.discounts, f.redemptions, logger, fixedClock)
	bundles := NewBundleEngine(f.catalog, logger)
	promo := NewPromoStockPool(f.campaigns, fixedClock)
	producer := event.NewProducer(nil, logger)

	f.svc = NewCheckoutService(
		pool, f.catalog, f.orders, f.discounts, f.carts,
		ledger, bundles, promo, newTestCache(snap), producer, logger, fixedClock,
	)
	return f
}

func (f *checkoutFixture) assertExpectations(t *testing.T) {
	t.Helper()
	assert.NoError(t, f.pool.ExpectationsWereMet())
	f.catalog.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.discounts.AssertExpectations(t)
	f.campaigns.AssertExpectations(t)
	f.redemptions.AssertExpectations(t)
	f.carts.AssertExpectations(t)
}

func activeDiscount(id int64, code string, isAuto bool) *domain.Discount {
	return &domain.Discount{
		ID:              id,
		Code:            code,
		Name:            code,
		ValueType:       domain.ValueTypePercent,
		Value:           10,
		AppliesTo:       domain.AppliesToAll,
		EligibilityType: domain.EligibilityAll,
		IsActive:        true,
		IsEcommerce:     true,
		IsAuto:          isAuto,
		StartedAt:       testNow.Add(-24 * time.Hour),
		ExpiredAt:       testNow.Add(24 * time.Hour),
	}
}

func snapshotWith(discounts ...domain.Discount) *pricing.Snapshot {
	return pricing.BuildSnapshot(pricing.BuildInput{Now: testNow, Discounts: discounts})
}

func TestReserveCart_PlainLine(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug", BrandID: 3, CategoryID: 4}, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.Status == domain.OrderReserved && o.UserID == 42 && o.DiscountID == nil
	})).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{ID: 11, ProductID: 1, SKU: "MUG-RED", Stock: 10}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(11), -2).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.MatchedBy(func(mv *domain.StockMovement) bool {
		return mv.VariantID == 11 && mv.Change == -2 && mv.Type == domain.MovementOrder
	})).Return(nil)
	f.catalog.On("GetChannelStockForUpdate", ctx, mock.Anything, int64(11), "ecommerce").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("AddLine", ctx, mock.Anything, mock.MatchedBy(func(l *domain.OrderLine) bool {
		return l.VariantID == 11 && l.Qty == 2 && l.Meta.StockDecremented == 2
	})).Return(int64(501), nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), 1).Return(nil)

	// Reserved lines are detached from the pending Redis cart after commit.
	f.carts.On("Get", ctx, int64(42)).Return(&domain.Cart{
		UserID: 42,
		Lines: []domain.CartLine{
			{VariantID: 11, ProductID: 1, Qty: 2},
			{VariantID: 99, ProductID: 9, Qty: 1},
		},
	}, nil)
	f.carts.On("Save", ctx, mock.MatchedBy(func(c *domain.Cart) bool {
		return len(c.Lines) == 1 && c.Lines[0].VariantID == 99
	})).Return(nil)

	res, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:  42,
		Channel: "ecommerce",
		Lines:   []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 2, UnitPrice: 10000}},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.Nil(t, res.DiscountID)
	assert.Zero(t, res.DiscountAmount)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, int64(501), res.Lines[0].ID)
	assert.Equal(t, 2, res.Lines[0].Meta.StockDecremented)
	assert.Nil(t, res.Lines[0].Meta.ChannelStock)

	f.assertExpectations(t)
}

func TestReserveCart_KitInsufficientStock(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectRollback()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Camping Kit"}, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{
			ID: 11, ProductID: 1, SKU: "KIT-1", Stock: 5,
			IsBundle: true, BundleStockMode: domain.BundleModeKit,
		}, nil)

	_, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:  42,
		Channel: "ecommerce",
		Lines:   []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 6, UnitPrice: 50000}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	f.catalog.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "AddLine", mock.Anything, mock.Anything, mock.Anything)

	f.assertExpectations(t)
}

func TestReserveCart_VirtualBundle(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Picnic Set"}, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{
			ID: 11, ProductID: 1, SKU: "SET-1",
			IsBundle: true, BundleStockMode: domain.BundleModeVirtual,
		}, nil)
	f.catalog.On("LockComponents", ctx, mock.Anything, int64(11)).
		Return([]domain.ComponentStock{
			{ComponentVariantID: 21, ComponentQty: 2, Stock: 10},
			{ComponentVariantID: 22, ComponentQty: 1, Stock: 4},
		}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(21), -4).Return(nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(22), -2).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.MatchedBy(func(mv *domain.StockMovement) bool {
		return mv.Type == domain.MovementBundleConsumeComponent
	})).Return(nil).Twice()
	f.catalog.On("ListComponents", ctx, mock.Anything, int64(11)).
		Return([]domain.ComponentStock{
			{ComponentVariantID: 21, ComponentQty: 2, Stock: 6},
			{ComponentVariantID: 22, ComponentQty: 1, Stock: 2},
		}, nil)
	f.catalog.On("SetStock", ctx, mock.Anything, int64(11), 2).Return(nil)
	f.catalog.On("GetChannelStockForUpdate", ctx, mock.Anything, int64(11), "ecommerce").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("AddLine", ctx, mock.Anything, mock.MatchedBy(func(l *domain.OrderLine) bool {
		return l.Meta.BundleMode == domain.BundleModeVirtual &&
			len(l.Meta.BundleComponents) == 2 &&
			l.Meta.StockDecremented == 0
	})).Return(int64(502), nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), 1).Return(nil)
	f.carts.On("Get", ctx, int64(42)).Return(nil, apperrors.ErrNotFound)

	res, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:  42,
		Channel: "ecommerce",
		Lines:   []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 2, UnitPrice: 30000}},
	})

	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, []domain.ComponentDebit{
		{ComponentVariantID: 21, QtyDebited: 4},
		{ComponentVariantID: 22, QtyDebited: 2},
	}, res.Lines[0].Meta.BundleComponents)

	f.assertExpectations(t)
}

func TestReserveCart_ManualDiscount(t *testing.T) {
	d := activeDiscount(7, "SAVE10", false)
	f := newCheckoutFixture(t, snapshotWith(*d))
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug"}, nil)
	f.discounts.On("GetByCode", ctx, "SAVE10").Return(d, nil)
	f.discounts.On("GetForUpdate", ctx, mock.Anything, int64(7)).Return(d, nil)
	f.discounts.On("AdjustCounters", ctx, mock.Anything, int64(7), 1, 0).Return(nil)
	f.redemptions.On("Insert", ctx, mock.Anything, mock.MatchedBy(func(r *domain.Redemption) bool {
		return r.DiscountID == 7 && r.Status == domain.RedemptionReserved && r.UserID == 42
	})).Return(nil)
	f.orders.On("Create", ctx, mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.DiscountID != nil && *o.DiscountID == 7 && o.DiscountAmount == 2000
	})).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{ID: 11, ProductID: 1, Stock: 10}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(11), -2).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("GetChannelStockForUpdate", ctx, mock.Anything, int64(11), "ecommerce").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("AddLine", ctx, mock.Anything, mock.Anything).Return(int64(503), nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), 1).Return(nil)
	f.carts.On("Get", ctx, int64(42)).Return(nil, apperrors.ErrNotFound)

	res, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:       42,
		Channel:      "ecommerce",
		DiscountCode: "SAVE10",
		Lines:        []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 2, UnitPrice: 10000}},
	})

	require.NoError(t, err)
	require.NotNil(t, res.DiscountID)
	assert.Equal(t, int64(7), *res.DiscountID)
	assert.Equal(t, int64(2000), res.DiscountAmount) // 10% of 20000
	assert.Empty(t, res.AutoDiscountCode)

	f.assertExpectations(t)
}

func TestReserveCart_ManualDiscountWrongChannel(t *testing.T) {
	d := activeDiscount(7, "SAVE10", false)
	d.IsEcommerce = false
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectRollback()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug"}, nil)
	f.discounts.On("GetByCode", ctx, "SAVE10").Return(d, nil)

	_, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:       42,
		Channel:      "ecommerce",
		DiscountCode: "SAVE10",
		Lines:        []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 1, UnitPrice: 10000}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	f.assertExpectations(t)
}

func TestReserveCart_ManualDiscountUserNotListed(t *testing.T) {
	d := activeDiscount(7, "VIP10", false)
	d.EligibilityType = domain.EligibilityUsers
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectRollback()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug"}, nil)
	f.discounts.On("GetByCode", ctx, "VIP10").Return(d, nil)
	f.discounts.On("IsCustomerListed", ctx, int64(7), int64(42)).Return(false, nil)

	_, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:       42,
		Channel:      "ecommerce",
		DiscountCode: "VIP10",
		Lines:        []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 1, UnitPrice: 10000}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	f.assertExpectations(t)
}

func TestReserveCart_AutoDiscountApplied(t *testing.T) {
	d := activeDiscount(7, "AUTO10", true)
	f := newCheckoutFixture(t, snapshotWith(*d))
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug"}, nil)
	f.discounts.On("GetForUpdate", ctx, mock.Anything, int64(7)).Return(d, nil)
	f.discounts.On("AdjustCounters", ctx, mock.Anything, int64(7), 1, 0).Return(nil)
	f.redemptions.On("Insert", ctx, mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Create", ctx, mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.AutoCode == "AUTO10" && o.DiscountAmount == 1000
	})).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{ID: 11, ProductID: 1, Stock: 10}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(11), -1).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("GetChannelStockForUpdate", ctx, mock.Anything, int64(11), "ecommerce").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("AddLine", ctx, mock.Anything, mock.Anything).Return(int64(504), nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), 1).Return(nil)
	f.carts.On("Get", ctx, int64(42)).Return(nil, apperrors.ErrNotFound)

	res, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:  42,
		Channel: "ecommerce",
		Lines:   []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 1, UnitPrice: 10000}},
	})

	require.NoError(t, err)
	assert.Equal(t, "AUTO10", res.AutoDiscountCode)
	assert.Equal(t, int64(1000), res.DiscountAmount)

	f.assertExpectations(t)
}

func TestReserveCart_AutoDiscountExhaustedProceeds(t *testing.T) {
	d := activeDiscount(7, "AUTO10", true)
	f := newCheckoutFixture(t, snapshotWith(*d))
	ctx := context.Background()

	// The snapshot still nominates the discount, but the locked row shows the
	// quota exhausted; checkout proceeds without it instead of failing.
	exhausted := activeDiscount(7, "AUTO10", true)
	exhausted.UsageLimit = intPtr(1)
	exhausted.UsageCount = 1

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug"}, nil)
	f.discounts.On("GetForUpdate", ctx, mock.Anything, int64(7)).Return(exhausted, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.DiscountID == nil && o.DiscountAmount == 0 && o.AutoCode == ""
	})).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{ID: 11, ProductID: 1, Stock: 10}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(11), -1).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("GetChannelStockForUpdate", ctx, mock.Anything, int64(11), "ecommerce").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("AddLine", ctx, mock.Anything, mock.Anything).Return(int64(505), nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), 1).Return(nil)
	f.carts.On("Get", ctx, int64(42)).Return(nil, apperrors.ErrNotFound)

	res, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:  42,
		Channel: "ecommerce",
		Lines:   []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 1, UnitPrice: 10000}},
	})

	require.NoError(t, err)
	assert.Nil(t, res.DiscountID)
	f.redemptions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)

	f.assertExpectations(t)
}

func TestReserveCart_PromoLine(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.catalog.On("GetProduct", ctx, mock.Anything, int64(1)).
		Return(&domain.Product{ID: 1, Name: "Enamel Mug"}, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)
	f.campaigns.On("GetByID", ctx, int64(9)).Return(&domain.Campaign{
		ID:       9,
		Kind:     domain.CampaignFlashSale,
		Status:   domain.CampaignPublished,
		StartsAt: testNow.Add(-time.Hour),
		EndsAt:   testNow.Add(time.Hour),
	}, nil)
	f.campaigns.On("GetItemForUpdate", ctx, mock.Anything, int64(9), int64(11)).
		Return(&domain.CampaignItem{CampaignID: 9, VariantID: 11, PromoStock: 5}, nil)
	f.campaigns.On("AdjustItemPromoStock", ctx, mock.Anything, int64(9), int64(11), -2).Return(nil)
	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{ID: 11, ProductID: 1, Stock: 10}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(11), -2).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("GetChannelStockForUpdate", ctx, mock.Anything, int64(11), "ecommerce").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("AddLine", ctx, mock.Anything, mock.MatchedBy(func(l *domain.OrderLine) bool {
		return l.Meta.Promo != nil && l.Meta.Promo.StockDecremented && l.Meta.Promo.CampaignID == 9
	})).Return(int64(506), nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), 1).Return(nil)
	f.carts.On("Get", ctx, int64(42)).Return(nil, apperrors.ErrNotFound)

	res, err := f.svc.ReserveCart(ctx, &ReserveCartInput{
		UserID:  42,
		Channel: "ecommerce",
		Lines: []domain.CartLine{{
			VariantID: 11, ProductID: 1, Qty: 2,
			UnitPrice: 10000, UnitDiscount: 2000,
			Promo: &domain.PromoMeta{Kind: domain.CampaignFlashSale, CampaignID: 9},
		}},
	})

	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, int64(8000), res.Lines[0].UnitPrice)

	f.assertExpectations(t)
}

func TestReserveCart_InvalidChannel(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	_, err := f.svc.ReserveCart(context.Background(), &ReserveCartInput{
		UserID:  42,
		Channel: "marketplace",
		Lines:   []domain.CartLine{{VariantID: 11, ProductID: 1, Qty: 1, UnitPrice: 100}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, f.pool.ExpectationsWereMet())
}

func TestCancelOrder_RestoresMetadata(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.orders.On("GetForUpdate", ctx, mock.Anything, "ord-1").
		Return(&domain.Order{ID: "ord-1", UserID: 42, Status: domain.OrderReserved}, nil)
	f.orders.On("ListLines", ctx, mock.Anything, "ord-1").Return([]domain.OrderLine{
		{
			ID: 501, OrderID: "ord-1", VariantID: 11, ProductID: 1, Qty: 2,
			Meta: domain.ReservationMeta{
				StockDecremented: 2,
				ChannelStock:     &domain.ChannelDebit{Channel: "ecommerce", QtyDebited: 2},
			},
		},
		// Already restored by an earlier cancel attempt; must be skipped.
		{ID: 502, OrderID: "ord-1", VariantID: 12, ProductID: 2, Qty: 1, Restored: true,
			Meta: domain.ReservationMeta{StockDecremented: 1}},
	}, nil)

	f.catalog.On("GetVariantForUpdate", ctx, mock.Anything, int64(11)).
		Return(&domain.ProductVariant{ID: 11, ProductID: 1, Stock: 8}, nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(11), 2).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.MatchedBy(func(mv *domain.StockMovement) bool {
		return mv.VariantID == 11 && mv.Change == 2 && mv.Type == domain.MovementOrderCancel
	})).Return(nil)
	f.catalog.On("AdjustChannelStock", ctx, mock.Anything, int64(11), "ecommerce", 2, 0).Return(nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), -1).Return(nil)
	f.orders.On("MarkLineRestored", ctx, mock.Anything, int64(501)).Return(nil)

	f.redemptions.On("GetByTransactionForUpdate", ctx, mock.Anything, "ord-1").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("SetStatus", ctx, mock.Anything, "ord-1", domain.OrderCancelled, testNow).Return(nil)

	err := f.svc.CancelOrder(ctx, "ord-1")

	require.NoError(t, err)
	f.catalog.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, int64(12), mock.Anything)

	f.assertExpectations(t)
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.orders.On("GetForUpdate", ctx, mock.Anything, "ord-1").
		Return(&domain.Order{ID: "ord-1", Status: domain.OrderCancelled}, nil)

	err := f.svc.CancelOrder(ctx, "ord-1")

	require.NoError(t, err)
	f.orders.AssertNotCalled(t, "ListLines", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.assertExpectations(t)
}

func TestCancelOrder_VirtualBundleLine(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.orders.On("GetForUpdate", ctx, mock.Anything, "ord-2").
		Return(&domain.Order{ID: "ord-2", UserID: 42, Status: domain.OrderReserved}, nil)
	f.orders.On("ListLines", ctx, mock.Anything, "ord-2").Return([]domain.OrderLine{
		{
			ID: 510, OrderID: "ord-2", VariantID: 11, ProductID: 1, Qty: 2,
			Meta: domain.ReservationMeta{
				BundleMode: domain.BundleModeVirtual,
				BundleComponents: []domain.ComponentDebit{
					{ComponentVariantID: 21, QtyDebited: 4},
					{ComponentVariantID: 22, QtyDebited: 2},
				},
			},
		},
	}, nil)

	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(21), 4).Return(nil)
	f.catalog.On("AdjustStock", ctx, mock.Anything, int64(22), 2).Return(nil)
	f.catalog.On("InsertMovement", ctx, mock.Anything, mock.MatchedBy(func(mv *domain.StockMovement) bool {
		return mv.Type == domain.MovementBundleRestoreComponent && mv.RelatedID == "ord-2"
	})).Return(nil).Twice()
	f.catalog.On("ListComponents", ctx, mock.Anything, int64(11)).
		Return([]domain.ComponentStock{
			{ComponentVariantID: 21, ComponentQty: 2, Stock: 10},
			{ComponentVariantID: 22, ComponentQty: 1, Stock: 4},
		}, nil)
	f.catalog.On("SetStock", ctx, mock.Anything, int64(11), 4).Return(nil)
	f.catalog.On("AdjustPopularity", ctx, mock.Anything, int64(1), -1).Return(nil)
	f.orders.On("MarkLineRestored", ctx, mock.Anything, int64(510)).Return(nil)

	f.redemptions.On("GetByTransactionForUpdate", ctx, mock.Anything, "ord-2").
		Return(nil, apperrors.ErrNotFound)
	f.orders.On("SetStatus", ctx, mock.Anything, "ord-2", domain.OrderCancelled, testNow).Return(nil)

	err := f.svc.CancelOrder(ctx, "ord-2")

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestConfirmPayment_Success(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.orders.On("GetForUpdate", ctx, mock.Anything, "ord-1").
		Return(&domain.Order{ID: "ord-1", UserID: 42, Status: domain.OrderReserved}, nil)
	f.redemptions.On("GetByTransactionForUpdate", ctx, mock.Anything, "ord-1").
		Return(&domain.Redemption{ID: 31, DiscountID: 7, TransactionID: "ord-1", Status: domain.RedemptionReserved}, nil)
	f.discounts.On("GetForUpdate", ctx, mock.Anything, int64(7)).
		Return(activeDiscount(7, "SAVE10", false), nil)
	f.discounts.On("AdjustCounters", ctx, mock.Anything, int64(7), -1, 1).Return(nil)
	f.redemptions.On("SetStatus", ctx, mock.Anything, int64(31), domain.RedemptionUsed, testNow).Return(nil)
	f.orders.On("SetStatus", ctx, mock.Anything, "ord-1", domain.OrderPaid, testNow).Return(nil)

	err := f.svc.ConfirmPayment(ctx, "ord-1")

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestConfirmPayment_AlreadyPaid(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectCommit()

	f.orders.On("GetForUpdate", ctx, mock.Anything, "ord-1").
		Return(&domain.Order{ID: "ord-1", Status: domain.OrderPaid}, nil)

	err := f.svc.ConfirmPayment(ctx, "ord-1")

	require.NoError(t, err)
	f.orders.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.assertExpectations(t)
}

func TestConfirmPayment_CancelledOrder(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	f.pool.ExpectBegin()
	f.pool.ExpectRollback()

	f.orders.On("GetForUpdate", ctx, mock.Anything, "ord-1").
		Return(&domain.Order{ID: "ord-1", Status: domain.OrderCancelled}, nil)

	err := f.svc.ConfirmPayment(ctx, "ord-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	f.assertExpectations(t)
}
